package service

import (
	"context"

	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
)

// PoolCaps is the per-worker slot cap of each pool.
type PoolCaps map[domain.Pool]int

// DefaultPoolCaps returns three shared task/bug slots and one QA review slot.
func DefaultPoolCaps() PoolCaps {
	return PoolCaps{
		domain.PoolWork:   3,
		domain.PoolReview: 1,
	}
}

// ConcurrencyLimiter counts the slots a worker occupies in a pool. Active
// and Paused items both occupy a slot.
type ConcurrencyLimiter struct {
	items  repository.WorkItemRepo
	grants GrantChecker
	caps   PoolCaps
}

func NewConcurrencyLimiter(items repository.WorkItemRepo, grants GrantChecker, caps PoolCaps) *ConcurrencyLimiter {
	merged := DefaultPoolCaps()
	for pool, c := range caps {
		merged[pool] = c
	}
	return &ConcurrencyLimiter{items: items, grants: grants, caps: merged}
}

func (l *ConcurrencyLimiter) Cap(pool domain.Pool) int {
	return l.caps[pool]
}

func (l *ConcurrencyLimiter) ActiveItems(ctx context.Context, workerID string, pool domain.Pool) ([]domain.ActiveItem, error) {
	holders, err := l.items.ListSlotHolders(ctx, workerID, pool.Kinds(), "")
	if err != nil {
		return nil, classify(domain.OpStart, err)
	}
	return activeItems(holders), nil
}

func (l *ConcurrencyLimiter) ActiveCount(ctx context.Context, workerID string, pool domain.Pool) (int, error) {
	active, err := l.ActiveItems(ctx, workerID, pool)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

// CanActivate reports whether the worker could take one more item in pool
// right now. It is advisory; the engine re-checks inside the transition.
func (l *ConcurrencyLimiter) CanActivate(ctx context.Context, workerID string, pool domain.Pool) (bool, error) {
	unlimited, err := l.grants.HasGrant(ctx, workerID, domain.CapabilityUnlimitedSessions)
	if err != nil {
		return false, classify(domain.OpStart, err)
	}
	if unlimited {
		return true, nil
	}
	n, err := l.ActiveCount(ctx, workerID, pool)
	if err != nil {
		return false, err
	}
	return n < l.Cap(pool), nil
}

// admit enforces the cap for activating item. items must be bound to the
// transition's transaction so the count and the write commit together.
func (l *ConcurrencyLimiter) admit(ctx context.Context, items repository.WorkItemRepo, workerID string, item *domain.WorkItem, unlimited bool) error {
	if unlimited {
		return nil
	}
	pool := item.Pool()
	limit := l.Cap(pool)
	holders, err := items.ListSlotHolders(ctx, workerID, pool.Kinds(), item.ID)
	if err != nil {
		return err
	}
	if len(holders) < limit {
		return nil
	}
	return &domain.LimitError{
		WorkerID: workerID,
		Pool:     pool,
		Cap:      limit,
		Active:   activeItems(holders),
	}
}

func activeItems(items []*domain.WorkItem) []domain.ActiveItem {
	out := make([]domain.ActiveItem, 0, len(items))
	for _, w := range items {
		out = append(out, w.ActiveItem())
	}
	return out
}

var _ Limiter = (*ConcurrencyLimiter)(nil)
