package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
)

// SweeperConfig tunes the staleness sweeper.
type SweeperConfig struct {
	Interval        time.Duration
	AlertThresholds []time.Duration
	AutoCloseAfter  time.Duration
	// AuditEvery runs a full recompute-from-history audit every N sweeps.
	// Zero disables it.
	AuditEvery int
	Retry      RetryPolicy
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:        5 * time.Minute,
		AlertThresholds: []time.Duration{3 * time.Hour},
		AutoCloseAfter:  12 * time.Hour,
		AuditEvery:      12,
		Retry:           DefaultRetryPolicy(),
	}
}

type sweepOutcome int

const (
	sweepNone sweepOutcome = iota
	sweepAlerted
	sweepAutoClosed
	sweepSkipped
)

type stalenessSweeper struct {
	engine   SessionEngine
	items    repository.WorkItemRepo
	auditor  Auditor
	notifier Notifier
	clock    clock.Clock
	cfg      SweeperConfig
	logger   *slog.Logger
	observer UseCaseObserver
	runs     atomic.Int64
}

// NewStalenessSweeper builds the sweeper. auditor may be nil to skip the
// periodic audit.
func NewStalenessSweeper(
	engine SessionEngine,
	items repository.WorkItemRepo,
	auditor Auditor,
	notifier Notifier,
	clk clock.Clock,
	cfg SweeperConfig,
	logger *slog.Logger,
	observers ...UseCaseObserver,
) Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweeperConfig().Interval
	}
	thresholds := make([]time.Duration, 0, len(cfg.AlertThresholds))
	for _, t := range cfg.AlertThresholds {
		if t > 0 {
			thresholds = append(thresholds, t)
		}
	}
	slices.Sort(thresholds)
	cfg.AlertThresholds = slices.Compact(thresholds)

	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &stalenessSweeper{
		engine:   engine,
		items:    items,
		auditor:  auditor,
		notifier: notifier,
		clock:    clock.OrSystem(clk),
		cfg:      cfg,
		logger:   logger,
		observer: useCaseObserverOrNoop(observers),
	}
}

// Sweep makes one pass over Active items. A failure on one item does not
// stop the pass; failures are joined into the returned error.
func (s *stalenessSweeper) Sweep(ctx context.Context) (report *SweepReport, err error) {
	ctx, uc := beginUseCase(ctx, s.observer, "sweeper_sweep", nil)
	defer func() { uc.end(ctx, err) }()

	now := s.clock.Now()
	active, err := s.items.List(ctx, repository.WorkItemFilter{
		States: []domain.SessionState{domain.StateActive},
	})
	if err != nil {
		return nil, classify(domain.OpForceFinish, err)
	}

	report = &SweepReport{Scanned: len(active)}
	var errs []error
	for _, item := range active {
		outcome, err := s.sweepItem(ctx, item, now)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("sweeping %s: %w", item.ID, err))
			continue
		}
		switch outcome {
		case sweepAlerted:
			report.Alerted++
		case sweepAutoClosed:
			report.AutoClosed++
		case sweepSkipped:
			report.Skipped++
		}
	}

	run := s.runs.Add(1)
	if s.auditor != nil && s.cfg.AuditEvery > 0 && run%int64(s.cfg.AuditEvery) == 0 {
		audit, err := s.auditor.VerifyAll(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("audit: %w", err))
		}
		report.Audit = audit
	}

	uc.set("scanned", report.Scanned)
	uc.set("alerted", report.Alerted)
	uc.set("auto_closed", report.AutoClosed)
	uc.set("skipped", report.Skipped)
	uc.set("failed", report.Failed)
	s.logger.InfoContext(ctx, "sweep finished",
		"scanned", report.Scanned,
		"alerted", report.Alerted,
		"auto_closed", report.AutoClosed,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, errors.Join(errs...)
}

// sweepItem acts on one scanned item. Auto-close wins over alerts; both are
// conditional on the item still running the session that was scanned. A
// session is auto-closed once it runs strictly longer than AutoCloseAfter.
func (s *stalenessSweeper) sweepItem(ctx context.Context, item *domain.WorkItem, now time.Time) (sweepOutcome, error) {
	if item.SessionStartedAt == nil {
		return sweepSkipped, nil
	}
	startedAt := *item.SessionStartedAt
	running := item.RunningFor(now)

	if s.cfg.AutoCloseAfter > 0 && running > s.cfg.AutoCloseAfter {
		closeAt := startedAt.Add(s.cfg.AutoCloseAfter)
		res, err := RetryStore(ctx, s.cfg.Retry, func() (*TransitionResult, error) {
			return s.engine.ForceFinish(ctx, ForceFinishRequest{
				WorkItemID:  item.ID,
				At:          &closeAt,
				IfStartedAt: &startedAt,
			})
		})
		if errors.Is(err, ErrStaleScan) {
			return sweepSkipped, nil
		}
		if err != nil {
			return sweepNone, err
		}
		s.deliver(ctx, "auto_closed", item.ID, func() error {
			return s.notifier.AutoClosed(ctx, item.ID, res.Item.AssigneeID, res.AccumulatedSeconds)
		})
		return sweepAutoClosed, nil
	}

	covered := thresholdsCovered(s.cfg.AlertThresholds, running)
	if covered <= item.AlertCount {
		return sweepNone, nil
	}
	recorded, err := RetryStore(ctx, s.cfg.Retry, func() (bool, error) {
		return s.engine.MarkAlerted(ctx, AlertRequest{
			WorkItemID:       item.ID,
			SessionStartedAt: startedAt,
			Covered:          covered,
			At:               now,
		})
	})
	if errors.Is(err, ErrStaleScan) {
		return sweepSkipped, nil
	}
	if err != nil {
		return sweepNone, err
	}
	if !recorded {
		return sweepNone, nil
	}
	s.deliver(ctx, "alert_raised", item.ID, func() error {
		return s.notifier.AlertRaised(ctx, item.ID, item.AssigneeID, int64(running/time.Second))
	})
	return sweepAlerted, nil
}

// deliver runs a notification after the transition committed. Failures are
// logged only.
func (s *stalenessSweeper) deliver(ctx context.Context, event, workItemID string, send func() error) {
	if err := send(); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"event", event,
			"work_item_id", workItemID,
			"error", err,
		)
	}
}

// Run sweeps immediately and then on every interval tick until ctx is done.
func (s *stalenessSweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "sweeper started",
		"interval", s.cfg.Interval.String(),
		"auto_close_after", s.cfg.AutoCloseAfter.String(),
	)
	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *stalenessSweeper) runOnce(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "sweep failed", "error", err)
	}
}

// thresholdsCovered counts the sorted thresholds that running has reached.
func thresholdsCovered(thresholds []time.Duration, running time.Duration) int {
	n := 0
	for _, t := range thresholds {
		if running < t {
			break
		}
		n++
	}
	return n
}
