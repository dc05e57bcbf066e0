// Package clock is the single source of "now" for the engine. Client-supplied
// instants are never trusted as the current time; they are only compared
// against a Clock reading.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current instant in UTC.
type Clock interface {
	Now() time.Time
}

// System reads the process wall clock.
type System struct{}

// Now returns time.Now in UTC with the monotonic reading stripped so values
// round-trip through storage unchanged.
func (System) Now() time.Time {
	return time.Now().UTC().Round(0)
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f().UTC()
}

// Manual is a settable clock for tests and simulations.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock starting at t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t. Moving backwards is allowed so tests can simulate
// skewed replicas.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t.UTC()
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// OrSystem returns c, or System when c is nil.
func OrSystem(c Clock) Clock {
	if c == nil {
		return System{}
	}
	return c
}
