package domain

import "time"

// AuditFlag records a condition the engine refused to trust silently.
type AuditFlag struct {
	ID         string
	WorkItemID string
	WorkerID   string
	SessionID  string
	Kind       AuditKind
	Detail     string
	ObservedAt time.Time
}
