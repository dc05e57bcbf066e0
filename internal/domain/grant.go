package domain

import "time"

// ConcurrencyGrant exempts a worker from a capability-gated limit. Grants are
// owned by the authorization collaborator; the engine only reads them.
type ConcurrencyGrant struct {
	ID         string
	WorkerID   string
	Capability Capability
	GrantedAt  time.Time
	ExpiresAt  *time.Time
	RevokedAt  *time.Time
}

// ActiveAt reports whether the grant is in force at now.
func (g *ConcurrencyGrant) ActiveAt(now time.Time) bool {
	if g.RevokedAt != nil && !g.RevokedAt.After(now) {
		return false
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return false
	}
	return true
}
