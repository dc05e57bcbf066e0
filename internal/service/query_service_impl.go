package service

import (
	"context"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
)

type timerQueries struct {
	items    repository.WorkItemRepo
	sessions repository.SessionRepo
	audits   repository.AuditRepo
	clock    clock.Clock
}

// NewTimerQueries exposes the read side used by reporting and approval
// tooling. Nothing here writes.
func NewTimerQueries(items repository.WorkItemRepo, sessions repository.SessionRepo, audits repository.AuditRepo, clk clock.Clock) TimerQueries {
	return &timerQueries{items: items, sessions: sessions, audits: audits, clock: clock.OrSystem(clk)}
}

func (q *timerQueries) Item(ctx context.Context, workItemID string) (*domain.WorkItem, error) {
	return q.items.GetByID(ctx, workItemID)
}

func (q *timerQueries) AccumulatedSeconds(ctx context.Context, workItemID string) (int64, error) {
	item, err := q.items.GetByID(ctx, workItemID)
	if err != nil {
		return 0, err
	}
	return item.AccumulatedSeconds, nil
}

func (q *timerQueries) LiveElapsedSeconds(ctx context.Context, workItemID string) (int64, error) {
	item, err := q.items.GetByID(ctx, workItemID)
	if err != nil {
		return 0, err
	}
	return item.LiveElapsedSeconds(q.clock.Now()), nil
}

func (q *timerQueries) CurrentState(ctx context.Context, workItemID string) (domain.SessionState, error) {
	item, err := q.items.GetByID(ctx, workItemID)
	if err != nil {
		return "", err
	}
	return item.State, nil
}

func (q *timerQueries) SessionHistory(ctx context.Context, workItemID string) ([]*domain.Session, error) {
	if _, err := q.items.GetByID(ctx, workItemID); err != nil {
		return nil, err
	}
	return q.sessions.ListByWorkItem(ctx, workItemID)
}

func (q *timerQueries) AuditFlags(ctx context.Context, workItemID string) ([]*domain.AuditFlag, error) {
	return q.audits.ListByWorkItem(ctx, workItemID)
}

func (q *timerQueries) RecentAuditFlags(ctx context.Context, limit int) ([]*domain.AuditFlag, error) {
	return q.audits.ListRecent(ctx, limit)
}
