package formatter

import (
	"testing"
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/service"
	"github.com/stretchr/testify/assert"
)

var fmtNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func closedSession(seq int, start time.Time, d time.Duration, reason domain.Reason) *domain.Session {
	s := domain.NewOpenSession("s", "T-1", "alice", seq, domain.ReasonStart, start, start)
	_, _ = s.Close(reason, start.Add(d))
	return s
}

func TestFormatHistory(t *testing.T) {
	item := &domain.WorkItem{ID: "T-1", Timer: domain.Timer{State: domain.StateActive}}
	sessions := []*domain.Session{
		closedSession(1, fmtNow.Add(-2*time.Hour), 30*time.Minute, domain.ReasonPause),
		domain.NewOpenSession("s2", "T-1", "alice", 2, domain.ReasonResume, fmtNow.Add(-time.Hour), fmtNow),
	}

	out := FormatHistory(item, sessions)
	assert.Contains(t, out, "2025-06-15 10:00:00Z")
	assert.Contains(t, out, "30m 00s")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "resume")
	assert.Contains(t, out, "Total 30m 00s")

	assert.Equal(t, "No sessions recorded for T-1.\n", FormatHistory(item, nil))
}

func TestFormatHistory_MarksSkew(t *testing.T) {
	item := &domain.WorkItem{ID: "T-1", Timer: domain.Timer{State: domain.StateFinished}}
	s := closedSession(1, fmtNow, -5*time.Minute, domain.ReasonFinish)

	out := FormatHistory(item, []*domain.Session{s})
	assert.Contains(t, out, "0s skew")
}

func TestFormatStatus_Active(t *testing.T) {
	started := fmtNow.Add(-90 * time.Minute)
	item := &domain.WorkItem{
		ID: "T-1", Kind: domain.KindTask, Title: "Fix login", AssigneeID: "alice",
		Timer: domain.Timer{State: domain.StateActive, AccumulatedSeconds: 600, SessionStartedAt: &started},
	}

	out := FormatStatus(item, fmtNow)
	assert.Contains(t, out, "Fix login")
	assert.Contains(t, out, "● Active")
	assert.Contains(t, out, "10m 00s")
	assert.Contains(t, out, "1h 40m 00s")
	assert.Contains(t, out, "1h ago")
}

func TestFormatLimit(t *testing.T) {
	out := FormatLimit(&domain.LimitError{
		WorkerID: "alice",
		Pool:     domain.PoolWork,
		Cap:      3,
		Active: []domain.ActiveItem{
			{WorkItemID: "T-1", Title: "one", State: domain.StateActive},
			{WorkItemID: "T-2", Title: "two", State: domain.StatePaused},
			{WorkItemID: "B-3", Title: "three", State: domain.StateActive},
		},
	})
	assert.Contains(t, out, "alice already holds 3 of 3 work slots")
	assert.Contains(t, out, "T-2  ◐ Paused  two")
}

func TestFormatActive(t *testing.T) {
	out := FormatActive("alice", domain.PoolReview, nil, 1, false)
	assert.Contains(t, out, "review pool  [░░░░░░░░░░] 0/1")
	assert.Contains(t, out, "No items occupy a slot.")

	out = FormatActive("alice", domain.PoolWork, []domain.ActiveItem{{WorkItemID: "T-1", Kind: domain.KindTask, State: domain.StateActive}}, 3, true)
	assert.Contains(t, out, "unlimited grant")
	assert.Contains(t, out, "T-1")
}

func TestFormatSweepReport(t *testing.T) {
	out := FormatSweepReport(&service.SweepReport{
		Scanned: 4, Alerted: 1, AutoClosed: 2, Skipped: 1, Failed: 0,
		Audit: &service.AuditReport{Checked: 9, Repaired: []string{"T-7"}},
	})
	assert.Contains(t, out, "Scanned 4 active item(s): 1 alerted, 2 auto-closed, 1 skipped\n")
	assert.Contains(t, out, "Audited 9 item(s): repaired 1: T-7")
	assert.NotContains(t, out, "failed")

	out = FormatSweepReport(&service.SweepReport{Failed: 2})
	assert.Contains(t, out, "2 failed")
}

func TestFormatTransition(t *testing.T) {
	closed := closedSession(1, fmtNow.Add(-time.Hour), time.Hour, domain.ReasonPause)
	res := &service.TransitionResult{
		Item:               &domain.WorkItem{ID: "T-1", Timer: domain.Timer{State: domain.StatePaused}},
		Session:            closed,
		AccumulatedSeconds: 3600,
	}
	assert.Equal(t, "paused T-1  ◐ Paused  total 1h 00m 00s  (+1h 00m 00s)\n", FormatTransition("paused", res))

	res.ClockSkew = true
	assert.Contains(t, FormatTransition("paused", res), "credited 0s")
}
