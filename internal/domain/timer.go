package domain

import (
	"fmt"
	"time"
)

// Interval is one closed span of work. Seconds is never negative: a close
// instant before the start contributes zero and sets Skewed.
type Interval struct {
	StartedAt time.Time
	ClosedAt  time.Time
	Seconds   int64
	Skewed    bool
}

// Span computes the clamped interval between start and end.
func Span(start, end time.Time) Interval {
	iv := Interval{StartedAt: start, ClosedAt: end}
	d := end.Sub(start)
	if d < 0 {
		iv.Skewed = true
		return iv
	}
	iv.Seconds = int64(d / time.Second)
	return iv
}

// ElapsedSeconds returns max(0, end-start) in whole seconds.
func ElapsedSeconds(start, end time.Time) int64 {
	return Span(start, end).Seconds
}

// Trackable is the session-state contract shared by every work item variant.
type Trackable interface {
	Start(at time.Time) error
	Pause(at time.Time) (Interval, error)
	Resume(at time.Time) error
	Finish(at time.Time) (*Interval, error)
	ForceFinish(at time.Time) (*Interval, error)
	LiveElapsedSeconds(now time.Time) int64
}

// Timer is the current-session pointer of a work item plus its running
// total. It holds no history; Session rows are the source of truth and the
// Timer can be re-derived from them.
type Timer struct {
	State              SessionState
	AccumulatedSeconds int64
	SessionStartedAt   *time.Time // set only while Active
	SessionPausedAt    *time.Time // set only while Paused
	AlertCount         int
	LastAlertAt        *time.Time
}

var (
	_ Trackable = (*Timer)(nil)
	_ Trackable = (*WorkItem)(nil)
)

// Start opens the first session. Legal only from Idle.
func (t *Timer) Start(at time.Time) error {
	if t.State != StateIdle {
		return &TransitionError{Op: OpStart, From: t.State}
	}
	t.activate(at)
	return nil
}

// Pause closes the running session and credits its duration. The pause
// instant never precedes the start of the session it closes.
func (t *Timer) Pause(at time.Time) (Interval, error) {
	if t.State != StateActive {
		return Interval{}, &TransitionError{Op: OpPause, From: t.State}
	}
	iv := t.closeRunning(at)
	t.State = StatePaused
	paused := at
	if paused.Before(iv.StartedAt) {
		paused = iv.StartedAt
	}
	t.SessionPausedAt = &paused
	return iv, nil
}

// Resume opens a new session on a paused item.
func (t *Timer) Resume(at time.Time) error {
	if t.State != StatePaused {
		return &TransitionError{Op: OpResume, From: t.State}
	}
	t.activate(at)
	return nil
}

// Finish completes the item. From Active the running session is closed and
// credited; from Paused nothing more is credited. The returned interval is
// nil when no session was closed.
func (t *Timer) Finish(at time.Time) (*Interval, error) {
	return t.finish(OpFinish, StateFinished, at)
}

// ForceFinish is Finish as issued by the sweeper; it lands in AutoClosed.
func (t *Timer) ForceFinish(at time.Time) (*Interval, error) {
	return t.finish(OpForceFinish, StateAutoClosed, at)
}

// Reopen returns a terminal item to Idle. The total is kept because the
// closed sessions behind it remain in history.
func (t *Timer) Reopen() error {
	if !t.State.IsTerminal() {
		return &TransitionError{Op: OpReopen, From: t.State}
	}
	t.State = StateIdle
	t.clearPointers()
	t.resetAlerts()
	return nil
}

// LiveElapsedSeconds is the display total: the stored total plus the open
// interval while Active. The open interval is never folded into the stored
// total until it closes.
func (t *Timer) LiveElapsedSeconds(now time.Time) int64 {
	if t.State == StateActive && t.SessionStartedAt != nil {
		return t.AccumulatedSeconds + ElapsedSeconds(*t.SessionStartedAt, now)
	}
	return t.AccumulatedSeconds
}

// RunningFor returns how long the current session has been open, or zero
// when the item is not Active.
func (t *Timer) RunningFor(now time.Time) time.Duration {
	if t.State != StateActive || t.SessionStartedAt == nil {
		return 0
	}
	d := now.Sub(*t.SessionStartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// RecordAlerts notes that the sweeper notified the worker; count is the number
// of alert thresholds now covered for the current session.
func (t *Timer) RecordAlerts(count int, at time.Time) {
	if count <= t.AlertCount {
		return
	}
	t.AlertCount = count
	alerted := at
	t.LastAlertAt = &alerted
}

// Validate checks the pointer invariants for the current state.
func (t *Timer) Validate() error {
	if t.AccumulatedSeconds < 0 {
		return fmt.Errorf("accumulated seconds %d is negative", t.AccumulatedSeconds)
	}
	switch t.State {
	case StateActive:
		if t.SessionStartedAt == nil || t.SessionPausedAt != nil {
			return fmt.Errorf("active timer must carry only a session start")
		}
	case StatePaused:
		if t.SessionPausedAt == nil || t.SessionStartedAt != nil {
			return fmt.Errorf("paused timer must carry only a pause instant")
		}
	case StateIdle, StateFinished, StateAutoClosed:
		if t.SessionStartedAt != nil || t.SessionPausedAt != nil {
			return fmt.Errorf("%s timer must not carry session timestamps", t.State)
		}
	default:
		return fmt.Errorf("unknown session state %q", t.State)
	}
	return nil
}

func (t *Timer) finish(op Op, target SessionState, at time.Time) (*Interval, error) {
	var closed *Interval
	switch t.State {
	case StateActive:
		iv := t.closeRunning(at)
		closed = &iv
	case StatePaused:
	default:
		return nil, &TransitionError{Op: op, From: t.State}
	}
	t.State = target
	t.clearPointers()
	return closed, nil
}

func (t *Timer) activate(at time.Time) {
	started := at
	t.State = StateActive
	t.SessionStartedAt = &started
	t.SessionPausedAt = nil
	t.resetAlerts()
}

func (t *Timer) closeRunning(at time.Time) Interval {
	start := at
	if t.SessionStartedAt != nil {
		start = *t.SessionStartedAt
	}
	iv := Span(start, at)
	t.AccumulatedSeconds += iv.Seconds
	t.SessionStartedAt = nil
	return iv
}

func (t *Timer) clearPointers() {
	t.SessionStartedAt = nil
	t.SessionPausedAt = nil
}

func (t *Timer) resetAlerts() {
	t.AlertCount = 0
	t.LastAlertAt = nil
}
