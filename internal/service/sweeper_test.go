package service

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_AutoCloseCapsCreditAtThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")

	h.clock.Set(testNow.Add(3*time.Hour + time.Minute))
	report, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Alerted)
	alerts, closes := h.notifier.counts()
	assert.Equal(t, 1, alerts)
	assert.Zero(t, closes)

	h.clock.Set(testNow.Add(13 * time.Hour))
	report, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AutoClosed)
	assert.Zero(t, report.Alerted)

	alerts, closes = h.notifier.counts()
	assert.Equal(t, 1, alerts, "no further alert once auto-closed")
	require.Equal(t, 1, closes)
	assert.Equal(t, autoCloseCall{WorkItemID: item.ID, WorkerID: "alice", AccumulatedSeconds: 12 * 3600}, h.notifier.autoCloses[0])

	got := h.reload(item.ID)
	assert.Equal(t, domain.StateAutoClosed, got.State)
	assert.Equal(t, int64(12*3600), got.AccumulatedSeconds)

	history := h.history(item.ID)
	require.Len(t, history, 1)
	assert.Equal(t, domain.ReasonAutoClose, history[0].CloseReason)
	require.NotNil(t, history[0].FinishedAt)
	assert.True(t, testNow.Add(12*time.Hour).Equal(*history[0].FinishedAt))
	h.requireConsistent(item.ID)
}

func TestSweeper_AutoCloseOnlyPastThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")

	h.clock.Set(testNow.Add(12 * time.Hour))
	report, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.AutoClosed)
	assert.Equal(t, domain.StateActive, h.reload(item.ID).State)

	h.clock.Advance(time.Second)
	report, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AutoClosed)

	got := h.reload(item.ID)
	assert.Equal(t, domain.StateAutoClosed, got.State)
	assert.Equal(t, int64(12*3600), got.AccumulatedSeconds)
	h.requireConsistent(item.ID)
}

func TestSweeper_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")
	h.clock.Set(testNow.Add(13 * time.Hour))

	_, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	report, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)

	_, closes := h.notifier.counts()
	assert.Equal(t, 1, closes)
	assert.Len(t, h.history(item.ID), 1)
	assert.Equal(t, int64(12*3600), h.reload(item.ID).AccumulatedSeconds)
}

func TestSweeper_AlertIsDebouncedPerSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")

	h.clock.Set(testNow.Add(3*time.Hour + 10*time.Minute))
	for range 3 {
		_, err := h.sweeper.Sweep(ctx)
		require.NoError(t, err)
		h.clock.Advance(5 * time.Minute)
	}
	alerts, _ := h.notifier.counts()
	assert.Equal(t, 1, alerts)
	assert.Equal(t, 1, h.reload(item.ID).AlertCount)

	// A new session earns a fresh alert once it crosses the threshold again.
	h.mustPause(item, "alice")
	h.clock.Advance(time.Minute)
	_, err := h.engine.Resume(ctx, h.req(item, "alice"))
	require.NoError(t, err)
	assert.Zero(t, h.reload(item.ID).AlertCount)

	h.clock.Advance(time.Hour)
	_, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	alerts, _ = h.notifier.counts()
	assert.Equal(t, 1, alerts, "new session below threshold")

	h.clock.Advance(2*time.Hour + time.Minute)
	_, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	alerts, _ = h.notifier.counts()
	assert.Equal(t, 2, alerts)
}

func TestSweeper_AlertLadder(t *testing.T) {
	cfg := DefaultSweeperConfig()
	cfg.AlertThresholds = []time.Duration{2 * time.Hour, time.Hour, time.Hour}
	h := newHarness(t, withSweeperConfig(cfg))
	ctx := context.Background()
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")

	// Crossing both rungs between two sweeps notifies once.
	h.clock.Set(testNow.Add(2*time.Hour + 30*time.Minute))
	_, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	alerts, _ := h.notifier.counts()
	assert.Equal(t, 1, alerts)
	assert.Equal(t, 2, h.reload(item.ID).AlertCount)
	assert.Equal(t, int64(9000), h.notifier.alerts[0].ElapsedSeconds)

	_, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	alerts, _ = h.notifier.counts()
	assert.Equal(t, 1, alerts)
}

func TestSweeper_IgnoresPausedAndFreshItems(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	paused := h.register(domain.KindTask, "alice")
	fresh := h.register(domain.KindTask, "alice")

	h.mustStart(paused, "alice")
	h.clock.Advance(time.Minute)
	h.mustPause(paused, "alice")
	h.clock.Set(testNow.Add(20 * time.Hour))
	h.mustStart(fresh, "alice")

	report, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Zero(t, report.Alerted)
	assert.Zero(t, report.AutoClosed)
	assert.Equal(t, domain.StatePaused, h.reload(paused.ID).State)
}

func TestSweeper_NotificationFailureKeepsTransition(t *testing.T) {
	h := newHarness(t)
	h.notifier.fail = true
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")
	h.clock.Set(testNow.Add(13 * time.Hour))

	report, err := h.sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.AutoClosed)
	assert.Equal(t, domain.StateAutoClosed, h.reload(item.ID).State)
}

func TestSweeper_StaleScanIsSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")

	// The worker paused and resumed after the scan read the item.
	scanned := testNow
	h.clock.Advance(time.Hour)
	h.mustPause(item, "alice")
	_, err := h.engine.Resume(ctx, h.req(item, "alice"))
	require.NoError(t, err)

	_, err = h.engine.ForceFinish(ctx, ForceFinishRequest{WorkItemID: item.ID, IfStartedAt: &scanned})
	assert.ErrorIs(t, err, ErrStaleScan)
	_, err = h.engine.MarkAlerted(ctx, AlertRequest{WorkItemID: item.ID, SessionStartedAt: scanned, Covered: 1, At: h.clock.Now()})
	assert.ErrorIs(t, err, ErrStaleScan)

	got := h.reload(item.ID)
	assert.Equal(t, domain.StateActive, got.State)
	assert.Zero(t, got.AlertCount)
}

func TestSweeper_PeriodicAuditRepairsDrift(t *testing.T) {
	cfg := DefaultSweeperConfig()
	cfg.AuditEvery = 2
	h := newHarness(t, withSweeperConfig(cfg))
	ctx := context.Background()
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")
	h.clock.Advance(10 * time.Minute)
	h.mustPause(item, "alice")

	_, err := h.db.ExecContext(ctx, `UPDATE work_items SET accumulated_seconds = 99 WHERE id = ?`, item.ID)
	require.NoError(t, err)

	report, err := h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Nil(t, report.Audit)

	report, err = h.sweeper.Sweep(ctx)
	require.NoError(t, err)
	require.NotNil(t, report.Audit)
	assert.Equal(t, []string{item.ID}, report.Audit.Repaired)
	assert.Equal(t, int64(600), h.reload(item.ID).AccumulatedSeconds)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	cfg := DefaultSweeperConfig()
	cfg.Interval = 10 * time.Millisecond
	h := newHarness(t, withSweeperConfig(cfg))
	item := h.register(domain.KindTask, "alice")
	h.mustStart(item, "alice")
	h.clock.Set(testNow.Add(13 * time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.sweeper.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, closes := h.notifier.counts()
		return closes == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	_, closes := h.notifier.counts()
	assert.Equal(t, 1, closes)
}

func TestThresholdsCovered(t *testing.T) {
	thresholds := []time.Duration{time.Hour, 3 * time.Hour}
	assert.Equal(t, 0, thresholdsCovered(thresholds, 59*time.Minute))
	assert.Equal(t, 1, thresholdsCovered(thresholds, time.Hour))
	assert.Equal(t, 1, thresholdsCovered(thresholds, 2*time.Hour))
	assert.Equal(t, 2, thresholdsCovered(thresholds, 5*time.Hour))
	assert.Equal(t, 0, thresholdsCovered(nil, 5*time.Hour))
}
