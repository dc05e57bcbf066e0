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

// DefaultSkewTolerance absorbs request latency between a client stamping an
// instant and the engine reading its own clock.
const DefaultSkewTolerance = 5 * time.Second

// EngineOptions tunes the session engine.
type EngineOptions struct {
	SkewTolerance time.Duration
	Logger        *slog.Logger
}

type sessionEngine struct {
	uow         db.UnitOfWork
	clock       clock.Clock
	limiter     *ConcurrencyLimiter
	assignments AssignmentChecker
	grants      GrantChecker
	tolerance   time.Duration
	logger      *slog.Logger
	observer    UseCaseObserver
	newID       func() string
}

func NewSessionEngine(
	uow db.UnitOfWork,
	clk clock.Clock,
	limiter *ConcurrencyLimiter,
	assignments AssignmentChecker,
	grants GrantChecker,
	opts EngineOptions,
	observers ...UseCaseObserver,
) SessionEngine {
	tolerance := opts.SkewTolerance
	if tolerance <= 0 {
		tolerance = DefaultSkewTolerance
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionEngine{
		uow:         uow,
		clock:       clock.OrSystem(clk),
		limiter:     limiter,
		assignments: assignments,
		grants:      grants,
		tolerance:   tolerance,
		logger:      logger,
		observer:    useCaseObserverOrNoop(observers),
		newID:       uuid.NewString,
	}
}

func (e *sessionEngine) Start(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return e.activate(ctx, domain.OpStart, req)
}

func (e *sessionEngine) Resume(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return e.activate(ctx, domain.OpResume, req)
}

func (e *sessionEngine) Pause(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return e.close(ctx, domain.OpPause, req)
}

func (e *sessionEngine) Finish(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	return e.close(ctx, domain.OpFinish, req)
}

// activate opens a session (start or resume). The collaborators are asked
// before the transaction; the holder, state, ordering and slot count are
// re-read inside it.
func (e *sessionEngine) activate(ctx context.Context, op domain.Op, req TransitionRequest) (res *TransitionResult, err error) {
	ctx, uc := beginUseCase(ctx, e.observer, "engine_"+string(op), requestFields(req))
	defer func() { uc.end(ctx, err) }()

	now := e.clock.Now()
	at, err := e.claimedInstant(op, req.ClientTime, now)
	if err != nil {
		e.flagRejected(ctx, req, err, now)
		return nil, err
	}

	assigned, err := e.assignments.IsAssignedTo(ctx, req.WorkItemID, req.WorkerID)
	if err != nil {
		return nil, classify(op, err)
	}
	if !assigned {
		return nil, notAssigned(op, req.WorkItemID, req.WorkerID)
	}
	unlimited, err := e.grants.HasGrant(ctx, req.WorkerID, domain.CapabilityUnlimitedSessions)
	if err != nil {
		return nil, classify(op, err)
	}
	uc.set("unlimited", unlimited)

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteWorkItemRepo(tx)
		sessions := repository.NewSQLiteSessionRepo(tx)

		item, err := items.GetByID(ctx, req.WorkItemID)
		if err != nil {
			return err
		}
		if !item.HeldBy(req.WorkerID) {
			return notAssigned(op, req.WorkItemID, req.WorkerID)
		}

		pausedAt := item.SessionPausedAt
		reason := domain.ReasonStart
		if op == domain.OpResume {
			reason = domain.ReasonResume
			err = item.Resume(at)
		} else {
			err = item.Start(at)
		}
		if err != nil {
			return err
		}
		if err := checkOpenOrder(ctx, sessions, op, item.ID, pausedAt, at); err != nil {
			return err
		}
		if err := e.limiter.admit(ctx, items, req.WorkerID, item, unlimited); err != nil {
			return err
		}

		seq, err := sessions.NextSeq(ctx, item.ID)
		if err != nil {
			return err
		}
		sess := domain.NewOpenSession(e.newID(), item.ID, req.WorkerID, seq, reason, at, now)
		if err := sessions.Create(ctx, sess); err != nil {
			return err
		}
		item.Touch(now)
		if err := items.Update(ctx, item); err != nil {
			return err
		}
		res = &TransitionResult{Item: item, Session: sess, AccumulatedSeconds: item.AccumulatedSeconds}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrClockSkew) {
			e.flagRejected(ctx, req, err, now)
		}
		res = nil
		return nil, classify(op, err)
	}
	uc.set("session_id", res.Session.ID)
	return res, nil
}

// close ends the running session (pause or finish).
func (e *sessionEngine) close(ctx context.Context, op domain.Op, req TransitionRequest) (res *TransitionResult, err error) {
	ctx, uc := beginUseCase(ctx, e.observer, "engine_"+string(op), requestFields(req))
	defer func() { uc.end(ctx, err) }()

	now := e.clock.Now()
	at, err := e.claimedInstant(op, req.ClientTime, now)
	if err != nil {
		e.flagRejected(ctx, req, err, now)
		return nil, err
	}

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		item, err := repository.NewSQLiteWorkItemRepo(tx).GetByID(ctx, req.WorkItemID)
		if err != nil {
			return err
		}
		if !item.HeldBy(req.WorkerID) {
			return notAssigned(op, req.WorkItemID, req.WorkerID)
		}

		var (
			iv     *domain.Interval
			reason domain.Reason
		)
		if op == domain.OpPause {
			reason = domain.ReasonPause
			closed, err := item.Pause(at)
			if err != nil {
				return err
			}
			iv = &closed
		} else {
			reason = domain.ReasonFinish
			if iv, err = item.Finish(at); err != nil {
				return err
			}
		}
		res, err = e.commitClose(ctx, tx, item, reason, iv, at, now)
		return err
	})
	if err != nil {
		res = nil
		return nil, classify(op, err)
	}
	e.reportSkew(ctx, op, res)
	uc.set("accumulated_seconds", res.AccumulatedSeconds)
	return res, nil
}

func (e *sessionEngine) ForceFinish(ctx context.Context, req ForceFinishRequest) (res *TransitionResult, err error) {
	ctx, uc := beginUseCase(ctx, e.observer, "engine_force_finish", map[string]any{
		"work_item_id": req.WorkItemID,
		"conditional":  req.IfStartedAt != nil,
	})
	defer func() { uc.end(ctx, err) }()

	now := e.clock.Now()
	at := now
	if req.At != nil && req.At.Before(now) {
		at = req.At.UTC()
	}

	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		item, err := repository.NewSQLiteWorkItemRepo(tx).GetByID(ctx, req.WorkItemID)
		if err != nil {
			return err
		}
		if req.IfStartedAt != nil && !runningSince(item, *req.IfStartedAt) {
			return ErrStaleScan
		}
		iv, err := item.ForceFinish(at)
		if err != nil {
			return err
		}
		res, err = e.commitClose(ctx, tx, item, domain.ReasonAutoClose, iv, at, now)
		return err
	})
	if err != nil {
		res = nil
		return nil, classify(domain.OpForceFinish, err)
	}
	e.reportSkew(ctx, domain.OpForceFinish, res)
	uc.set("accumulated_seconds", res.AccumulatedSeconds)
	return res, nil
}

// commitClose stamps the open row with its closing edge, records a skew
// flag when the edge precedes the start, and writes the aggregate.
func (e *sessionEngine) commitClose(ctx context.Context, tx db.DBTX, item *domain.WorkItem, reason domain.Reason, iv *domain.Interval, at, now time.Time) (*TransitionResult, error) {
	sessions := repository.NewSQLiteSessionRepo(tx)
	res := &TransitionResult{Item: item}

	if iv != nil {
		open, err := sessions.GetOpen(ctx, item.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("work item %s has no open session row to close", item.ID)
		}
		if err != nil {
			return nil, err
		}
		closed, err := open.Close(reason, at)
		if err != nil {
			return nil, err
		}
		if err := sessions.Close(ctx, open); err != nil {
			return nil, err
		}
		res.Session = open
		res.ClockSkew = closed.Skewed

		if closed.Skewed {
			flag := &domain.AuditFlag{
				ID:         e.newID(),
				WorkItemID: item.ID,
				WorkerID:   open.WorkerID,
				SessionID:  open.ID,
				Kind:       domain.AuditClockSkewClose,
				Detail: fmt.Sprintf("%s at %s precedes session start %s; credited 0s",
					reason, at.Format(time.RFC3339), open.StartedAt.Format(time.RFC3339)),
				ObservedAt: now,
			}
			if err := repository.NewSQLiteAuditRepo(tx).Create(ctx, flag); err != nil {
				return nil, err
			}
		}
	}

	item.Touch(now)
	if err := repository.NewSQLiteWorkItemRepo(tx).Update(ctx, item); err != nil {
		return nil, err
	}
	res.AccumulatedSeconds = item.AccumulatedSeconds
	return res, nil
}

func (e *sessionEngine) Reopen(ctx context.Context, workItemID string) (item *domain.WorkItem, err error) {
	ctx, uc := beginUseCase(ctx, e.observer, "engine_reopen", map[string]any{"work_item_id": workItemID})
	defer func() { uc.end(ctx, err) }()

	now := e.clock.Now()
	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteWorkItemRepo(tx)
		w, err := items.GetByID(ctx, workItemID)
		if err != nil {
			return err
		}
		if err := w.Reopen(); err != nil {
			return err
		}
		w.Touch(now)
		if err := items.Update(ctx, w); err != nil {
			return err
		}
		item = w
		return nil
	})
	if err != nil {
		return nil, classify(domain.OpReopen, err)
	}
	return item, nil
}

func (e *sessionEngine) MarkAlerted(ctx context.Context, req AlertRequest) (recorded bool, err error) {
	ctx, uc := beginUseCase(ctx, e.observer, "engine_alert", map[string]any{
		"work_item_id": req.WorkItemID,
		"covered":      req.Covered,
	})
	defer func() { uc.end(ctx, err) }()

	now := e.clock.Now()
	err = e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteWorkItemRepo(tx)
		item, err := items.GetByID(ctx, req.WorkItemID)
		if err != nil {
			return err
		}
		if !runningSince(item, req.SessionStartedAt) {
			return ErrStaleScan
		}
		if req.Covered <= item.AlertCount {
			return nil
		}
		item.RecordAlerts(req.Covered, req.At)
		item.Touch(now)
		if err := items.Update(ctx, item); err != nil {
			return err
		}
		recorded = true
		return nil
	})
	if err != nil {
		return false, classify(domain.OpAlert, err)
	}
	uc.set("recorded", recorded)
	return recorded, nil
}

// claimedInstant resolves the instant an edge is stamped with. A client
// instant beyond the tolerance is rejected; one within it is pulled back to
// now so no stored timestamp lies in the future.
func (e *sessionEngine) claimedInstant(op domain.Op, client *time.Time, now time.Time) (time.Time, error) {
	if client == nil {
		return now, nil
	}
	claimed := client.UTC()
	if claimed.After(now.Add(e.tolerance)) {
		return time.Time{}, &domain.SkewError{Op: op, Claimed: claimed, Reference: now, Detail: "is later than server time"}
	}
	if claimed.After(now) {
		return now, nil
	}
	return claimed, nil
}

// checkOpenOrder keeps session rows totally ordered: a new row may not
// precede the previous row's start or close, and a resume may not precede
// its pause.
func checkOpenOrder(ctx context.Context, sessions repository.SessionRepo, op domain.Op, workItemID string, pausedAt *time.Time, at time.Time) error {
	if op == domain.OpResume && pausedAt != nil && at.Before(*pausedAt) {
		return &domain.SkewError{Op: op, Claimed: at, Reference: *pausedAt, Detail: "precedes the pause"}
	}
	last, err := sessions.Last(ctx, workItemID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	floor, detail := last.StartedAt, "precedes the previous session start"
	// A skewed close can sit before its own start.
	if closedAt := last.ClosedAt(); closedAt != nil && closedAt.After(floor) {
		floor, detail = *closedAt, "precedes the previous session close"
	}
	if at.Before(floor) {
		return &domain.SkewError{Op: op, Claimed: at, Reference: floor, Detail: detail}
	}
	return nil
}

// flagRejected persists a clock_skew_rejected audit flag in its own
// transaction; the rejected transition itself left nothing behind.
func (e *sessionEngine) flagRejected(ctx context.Context, req TransitionRequest, cause error, now time.Time) {
	var skew *domain.SkewError
	if !errors.As(cause, &skew) {
		return
	}
	e.logger.WarnContext(ctx, "clock skew rejected",
		"op", string(skew.Op),
		"work_item_id", req.WorkItemID,
		"worker_id", req.WorkerID,
		"claimed", skew.Claimed,
		"reference", skew.Reference,
	)
	flag := &domain.AuditFlag{
		ID:         e.newID(),
		WorkItemID: req.WorkItemID,
		WorkerID:   req.WorkerID,
		Kind:       domain.AuditClockSkewRejected,
		Detail:     skew.Error(),
		ObservedAt: now,
	}
	err := e.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLiteAuditRepo(tx).Create(ctx, flag)
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "recording clock skew flag", "work_item_id", req.WorkItemID, "error", err)
	}
}

func (e *sessionEngine) reportSkew(ctx context.Context, op domain.Op, res *TransitionResult) {
	if res == nil || !res.ClockSkew {
		return
	}
	e.logger.WarnContext(ctx, "session closed before it started; credited zero",
		"op", string(op),
		"work_item_id", res.Item.ID,
		"session_id", res.Session.ID,
	)
}

// runningSince reports whether item is still Active on the session that
// started at startedAt.
func runningSince(item *domain.WorkItem, startedAt time.Time) bool {
	return item.State == domain.StateActive &&
		item.SessionStartedAt != nil &&
		item.SessionStartedAt.Equal(startedAt)
}

func requestFields(req TransitionRequest) map[string]any {
	fields := map[string]any{
		"work_item_id": req.WorkItemID,
		"worker_id":    req.WorkerID,
	}
	if req.ClientTime != nil {
		fields["client_time"] = req.ClientTime.UTC().Format(time.RFC3339)
	}
	return fields
}
