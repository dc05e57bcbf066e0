package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
)

// WorkItemFilter narrows List. Zero values match everything.
type WorkItemFilter struct {
	AssigneeID string
	States     []domain.SessionState
	Kinds      []domain.ItemKind
}

type WorkItemRepo interface {
	Create(ctx context.Context, w *domain.WorkItem) error
	GetByID(ctx context.Context, id string) (*domain.WorkItem, error)
	List(ctx context.Context, filter WorkItemFilter) ([]*domain.WorkItem, error)
	// ListSlotHolders returns the worker's Active or Paused items of the
	// given kinds, excluding excludeID.
	ListSlotHolders(ctx context.Context, workerID string, kinds []domain.ItemKind, excludeID string) ([]*domain.WorkItem, error)
	// Update writes the aggregate if its version still matches and bumps
	// w.Version on success.
	Update(ctx context.Context, w *domain.WorkItem) error
}

type SessionRepo interface {
	Create(ctx context.Context, s *domain.Session) error
	GetOpen(ctx context.Context, workItemID string) (*domain.Session, error)
	Last(ctx context.Context, workItemID string) (*domain.Session, error)
	ListByWorkItem(ctx context.Context, workItemID string) ([]*domain.Session, error)
	NextSeq(ctx context.Context, workItemID string) (int, error)
	// Close writes the closing edge of an open row. Closed rows are never
	// rewritten.
	Close(ctx context.Context, s *domain.Session) error
	// SumClosed totals duration_seconds over the closed rows in SQL.
	SumClosed(ctx context.Context, workItemID string) (int64, error)
}

type GrantRepo interface {
	Create(ctx context.Context, g *domain.ConcurrencyGrant) error
	ListByWorker(ctx context.Context, workerID string) ([]*domain.ConcurrencyGrant, error)
	HasActive(ctx context.Context, workerID string, capability domain.Capability, now time.Time) (bool, error)
	Revoke(ctx context.Context, workerID string, capability domain.Capability, at time.Time) (int64, error)
}

type AuditRepo interface {
	Create(ctx context.Context, f *domain.AuditFlag) error
	ListByWorkItem(ctx context.Context, workItemID string) ([]*domain.AuditFlag, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.AuditFlag, error)
}
