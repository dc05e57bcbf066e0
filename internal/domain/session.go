package domain

import (
	"fmt"
	"time"
)

// Session is one start-to-close interval on a work item. Rows are appended
// in Seq order and become immutable once closed.
type Session struct {
	ID         string
	WorkItemID string
	WorkerID   string
	Seq        int

	OpenReason  Reason // start or resume
	CloseReason Reason // pause, finish or auto_close; empty while open

	StartedAt  time.Time
	PausedAt   *time.Time
	FinishedAt *time.Time

	DurationSeconds *int64 // nil while open
	ClockSkew       bool

	CreatedAt time.Time
}

// NewOpenSession returns the row for a session opened at startedAt.
func NewOpenSession(id, workItemID, workerID string, seq int, reason Reason, startedAt, now time.Time) *Session {
	return &Session{
		ID:         id,
		WorkItemID: workItemID,
		WorkerID:   workerID,
		Seq:        seq,
		OpenReason: reason,
		StartedAt:  startedAt,
		CreatedAt:  now,
	}
}

// IsOpen reports whether the row still awaits its closing edge.
func (s *Session) IsOpen() bool {
	return s.DurationSeconds == nil
}

// ClosedAt returns whichever closing timestamp is set.
func (s *Session) ClosedAt() *time.Time {
	if s.PausedAt != nil {
		return s.PausedAt
	}
	return s.FinishedAt
}

// Close stamps the closing edge. The duration is recomputed from the two
// bounding timestamps, never carried over from elsewhere.
func (s *Session) Close(reason Reason, at time.Time) (Interval, error) {
	if !s.IsOpen() {
		return Interval{}, ErrSessionClosed
	}
	iv := Span(s.StartedAt, at)
	closed := at
	switch reason {
	case ReasonPause:
		s.PausedAt = &closed
	case ReasonFinish, ReasonAutoClose:
		s.FinishedAt = &closed
	default:
		return Interval{}, fmt.Errorf("unknown close reason %q", reason)
	}
	secs := iv.Seconds
	s.CloseReason = reason
	s.DurationSeconds = &secs
	s.ClockSkew = iv.Skewed
	return iv, nil
}

// Duration returns the closed duration, zero while open.
func (s *Session) Duration() int64 {
	if s.DurationSeconds == nil {
		return 0
	}
	return *s.DurationSeconds
}

// SumClosed totals the durations of the closed rows.
func SumClosed(sessions []*Session) int64 {
	var total int64
	for _, s := range sessions {
		if s.IsOpen() {
			continue
		}
		total += *s.DurationSeconds
	}
	return total
}
