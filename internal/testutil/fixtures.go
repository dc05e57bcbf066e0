package testutil

import (
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/google/uuid"
)

// Epoch is the fixed instant fixtures are stamped with.
var Epoch = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

// Work item options
type WorkItemOption func(*domain.WorkItem)

func WithKind(k domain.ItemKind) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Kind = k
	}
}

func WithAssignee(workerID string) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.AssigneeID = workerID
	}
}

func WithParent(id string) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.ParentID = id
	}
}

func WithTitle(title string) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.Title = title
	}
}

// WithActiveSince puts the item in Active with the given session start.
func WithActiveSince(at time.Time) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.State = domain.StateActive
		w.SessionStartedAt = &at
		w.SessionPausedAt = nil
	}
}

// WithPausedAt puts the item in Paused with the given pause instant.
func WithPausedAt(at time.Time) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.State = domain.StatePaused
		w.SessionStartedAt = nil
		w.SessionPausedAt = &at
	}
}

func WithAccumulated(seconds int64) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.AccumulatedSeconds = seconds
	}
}

func WithState(s domain.SessionState) WorkItemOption {
	return func(w *domain.WorkItem) {
		w.State = s
	}
}

// NewTestWorkItem returns an Idle task held by "worker-1" unless overridden.
func NewTestWorkItem(title string, opts ...WorkItemOption) *domain.WorkItem {
	w := &domain.WorkItem{
		ID:         uuid.New().String(),
		Kind:       domain.KindTask,
		Title:      title,
		AssigneeID: "worker-1",
		Timer:      domain.Timer{State: domain.StateIdle},
		Version:    1,
		CreatedAt:  Epoch,
		UpdatedAt:  Epoch,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Session options
type SessionOption func(*domain.Session)

// WithClosed closes the row at start+d with the given reason.
func WithClosed(reason domain.Reason, d time.Duration) SessionOption {
	return func(s *domain.Session) {
		_, _ = s.Close(reason, s.StartedAt.Add(d))
	}
}

func WithOpenReason(r domain.Reason) SessionOption {
	return func(s *domain.Session) {
		s.OpenReason = r
	}
}

// NewTestSession returns an open row started at startedAt.
func NewTestSession(workItemID, workerID string, seq int, startedAt time.Time, opts ...SessionOption) *domain.Session {
	s := domain.NewOpenSession(uuid.New().String(), workItemID, workerID, seq, domain.ReasonStart, startedAt, startedAt)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTestGrant returns an unlimited-sessions grant without expiry.
func NewTestGrant(workerID string, grantedAt time.Time) *domain.ConcurrencyGrant {
	return &domain.ConcurrencyGrant{
		ID:         uuid.New().String(),
		WorkerID:   workerID,
		Capability: domain.CapabilityUnlimitedSessions,
		GrantedAt:  grantedAt,
	}
}
