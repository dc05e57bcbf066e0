package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
	"github.com/google/uuid"
)

// historyAuditor re-derives each aggregate from its session rows and repairs
// drift. Session rows are the source of truth; the aggregate is a cache.
type historyAuditor struct {
	items    repository.WorkItemRepo
	uow      db.UnitOfWork
	clock    clock.Clock
	logger   *slog.Logger
	observer UseCaseObserver
}

func NewAuditor(items repository.WorkItemRepo, uow db.UnitOfWork, clk clock.Clock, logger *slog.Logger, observers ...UseCaseObserver) Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyAuditor{
		items:    items,
		uow:      uow,
		clock:    clock.OrSystem(clk),
		logger:   logger,
		observer: useCaseObserverOrNoop(observers),
	}
}

// Verify checks one item and reports whether it was repaired.
func (a *historyAuditor) Verify(ctx context.Context, workItemID string) (repaired bool, err error) {
	now := a.clock.Now()
	var flags []*domain.AuditFlag
	err = a.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteWorkItemRepo(tx)
		sessions := repository.NewSQLiteSessionRepo(tx)
		audits := repository.NewSQLiteAuditRepo(tx)

		item, err := items.GetByID(ctx, workItemID)
		if err != nil {
			return err
		}
		history, err := sessions.ListByWorkItem(ctx, workItemID)
		if err != nil {
			return err
		}
		stored, err := sessions.SumClosed(ctx, workItemID)
		if err != nil {
			return err
		}
		if err := checkHistoryTotal(workItemID, history, stored); err != nil {
			return err
		}

		flags = reconcile(item, history, now)
		if len(flags) == 0 {
			return nil
		}
		// An orphan open row on an item that is not running is closed with
		// zero credit; the close is appended, nothing closed is rewritten.
		for _, s := range history {
			if s.IsOpen() && item.State != domain.StateActive {
				if _, err := s.Close(domain.ReasonAutoClose, s.StartedAt); err != nil {
					return err
				}
				if err := sessions.Close(ctx, s); err != nil {
					return err
				}
			}
		}
		if err := item.Validate(); err != nil {
			return fmt.Errorf("repaired work item %s is still inconsistent: %w", item.ID, err)
		}
		item.Touch(now)
		if err := items.Update(ctx, item); err != nil {
			return err
		}
		for _, f := range flags {
			if err := audits.Create(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, classify(domain.OpAudit, err)
	}
	for _, f := range flags {
		a.logger.WarnContext(ctx, "audit repair", "work_item_id", f.WorkItemID, "kind", string(f.Kind), "detail", f.Detail)
	}
	return len(flags) > 0, nil
}

func (a *historyAuditor) VerifyAll(ctx context.Context) (report *AuditReport, err error) {
	ctx, uc := beginUseCase(ctx, a.observer, "audit_verify_all", nil)
	defer func() { uc.end(ctx, err) }()

	items, err := a.items.List(ctx, repository.WorkItemFilter{})
	if err != nil {
		return nil, classify(domain.OpAudit, err)
	}
	report = &AuditReport{}
	var errs []error
	for _, item := range items {
		repaired, err := a.Verify(ctx, item.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("verifying %s: %w", item.ID, err))
			continue
		}
		report.Checked++
		if repaired {
			report.Repaired = append(report.Repaired, item.ID)
		}
	}
	uc.set("checked", report.Checked)
	uc.set("repaired", len(report.Repaired))
	return report, errors.Join(errs...)
}

// checkHistoryTotal refuses to repair from a history read that disagrees
// with the store's own sum of the same rows.
func checkHistoryTotal(workItemID string, history []*domain.Session, stored int64) error {
	if listed := domain.SumClosed(history); listed != stored {
		return fmt.Errorf("work item %s: listed history sums to %ds, store sums to %ds", workItemID, listed, stored)
	}
	return nil
}

// reconcile aligns item with its history in place and returns one flag per
// corrected fact.
func reconcile(item *domain.WorkItem, history []*domain.Session, now time.Time) []*domain.AuditFlag {
	var flags []*domain.AuditFlag
	flag := func(kind domain.AuditKind, sessionID, format string, args ...any) {
		flags = append(flags, &domain.AuditFlag{
			ID:         uuid.NewString(),
			WorkItemID: item.ID,
			WorkerID:   item.AssigneeID,
			SessionID:  sessionID,
			Kind:       kind,
			Detail:     fmt.Sprintf(format, args...),
			ObservedAt: now,
		})
	}

	var (
		open       *domain.Session
		lastClosed *domain.Session
	)
	for _, s := range history {
		if s.IsOpen() {
			open = s
		} else {
			lastClosed = s
		}
	}

	if total := domain.SumClosed(history); item.AccumulatedSeconds != total {
		flag(domain.AuditTotalMismatch, "", "stored %ds, closed sessions sum to %ds", item.AccumulatedSeconds, total)
		item.AccumulatedSeconds = total
	}

	switch item.State {
	case domain.StateActive:
		if open == nil {
			// The running row is gone: park the item as paused so the holder
			// can resume or finish it without losing the slot silently.
			pausedAt := now
			if lastClosed != nil && lastClosed.ClosedAt() != nil {
				pausedAt = *lastClosed.ClosedAt()
			}
			flag(domain.AuditPointerRepair, "", "active without an open session; parked as paused at %s", pausedAt.Format(time.RFC3339))
			item.State = domain.StatePaused
			item.SessionStartedAt = nil
			item.SessionPausedAt = &pausedAt
			item.AlertCount = 0
			item.LastAlertAt = nil
			break
		}
		if item.SessionStartedAt == nil || !item.SessionStartedAt.Equal(open.StartedAt) {
			flag(domain.AuditPointerRepair, open.ID, "session start pointer realigned to %s", open.StartedAt.Format(time.RFC3339))
			started := open.StartedAt
			item.SessionStartedAt = &started
		}
		if item.SessionPausedAt != nil {
			flag(domain.AuditPointerRepair, open.ID, "active item carried a pause instant")
			item.SessionPausedAt = nil
		}
	default:
		if open != nil {
			flag(domain.AuditPointerRepair, open.ID, "%s item had an open session; closed with zero credit", item.State)
		}
		if item.SessionStartedAt != nil {
			flag(domain.AuditPointerRepair, "", "%s item carried a session start", item.State)
			item.SessionStartedAt = nil
		}
		if item.State == domain.StatePaused && item.SessionPausedAt == nil {
			pausedAt := now
			if lastClosed != nil && lastClosed.ClosedAt() != nil {
				pausedAt = *lastClosed.ClosedAt()
			}
			flag(domain.AuditPointerRepair, "", "paused item had no pause instant; set to %s", pausedAt.Format(time.RFC3339))
			item.SessionPausedAt = &pausedAt
		}
		if item.State != domain.StatePaused && item.SessionPausedAt != nil {
			flag(domain.AuditPointerRepair, "", "%s item carried a pause instant", item.State)
			item.SessionPausedAt = nil
		}
	}
	return flags
}
