package service

import (
	"context"
	"log/slog"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
)

// StoreAssignments answers IsAssignedTo from the work item's holder column.
type StoreAssignments struct {
	items repository.WorkItemRepo
}

func NewStoreAssignments(items repository.WorkItemRepo) *StoreAssignments {
	return &StoreAssignments{items: items}
}

// IsAssignedTo returns ErrNotFound for an unknown item rather than false.
func (a *StoreAssignments) IsAssignedTo(ctx context.Context, workItemID, workerID string) (bool, error) {
	item, err := a.items.GetByID(ctx, workItemID)
	if err != nil {
		return false, err
	}
	return item.HeldBy(workerID), nil
}

// StoreGrants answers HasGrant from the concurrency_grants table.
type StoreGrants struct {
	grants repository.GrantRepo
	clock  clock.Clock
}

func NewStoreGrants(grants repository.GrantRepo, clk clock.Clock) *StoreGrants {
	return &StoreGrants{grants: grants, clock: clock.OrSystem(clk)}
}

func (g *StoreGrants) HasGrant(ctx context.Context, workerID string, capability domain.Capability) (bool, error) {
	return g.grants.HasActive(ctx, workerID, capability, g.clock.Now())
}

// LogNotifier delivers notifications as structured log records.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) AlertRaised(ctx context.Context, workItemID, workerID string, elapsedSeconds int64) error {
	n.logger.InfoContext(ctx, "session alert",
		"work_item_id", workItemID,
		"worker_id", workerID,
		"elapsed_seconds", elapsedSeconds,
	)
	return nil
}

func (n *LogNotifier) AutoClosed(ctx context.Context, workItemID, workerID string, accumulatedSeconds int64) error {
	n.logger.InfoContext(ctx, "session auto-closed",
		"work_item_id", workItemID,
		"worker_id", workerID,
		"accumulated_seconds", accumulatedSeconds,
	)
	return nil
}

var (
	_ AssignmentChecker = (*StoreAssignments)(nil)
	_ GrantChecker      = (*StoreGrants)(nil)
	_ Notifier          = (*LogNotifier)(nil)
)
