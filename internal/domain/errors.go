package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidTransition indicates the requested action is illegal from the
	// item's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotAssigned indicates the acting worker does not hold the item.
	ErrNotAssigned = errors.New("work item not assigned to worker")

	// ErrConcurrencyLimitExceeded indicates the worker already occupies every
	// slot in the item's pool.
	ErrConcurrencyLimitExceeded = errors.New("concurrency limit exceeded")

	// ErrClockSkew indicates a claimed instant is in the future or out of order.
	ErrClockSkew = errors.New("clock skew")

	// ErrStoreUnavailable indicates a transaction or infrastructure failure.
	// The transition was not applied and may be retried.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentUpdate indicates an optimistic version check lost a race.
	ErrConcurrentUpdate = errors.New("concurrent update")

	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSessionClosed indicates an attempt to rewrite a closed session row.
	ErrSessionClosed = errors.New("session already closed")
)

// TransitionError reports an operation attempted from a state that forbids it.
type TransitionError struct {
	Op   Op
	From SessionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ActiveItem describes one item occupying a worker's slot.
type ActiveItem struct {
	WorkItemID string
	Kind       ItemKind
	Title      string
	State      SessionState
}

// LimitError carries the worker's current slot holders so callers can name
// the item to finish first.
type LimitError struct {
	WorkerID string
	Pool     Pool
	Cap      int
	Active   []ActiveItem
}

func (e *LimitError) Error() string {
	ids := make([]string, 0, len(e.Active))
	for _, a := range e.Active {
		ids = append(ids, fmt.Sprintf("%s(%s)", a.WorkItemID, a.State))
	}
	return fmt.Sprintf("worker %s already has %d of %d %s slots in use: %s",
		e.WorkerID, len(e.Active), e.Cap, e.Pool, strings.Join(ids, ", "))
}

func (e *LimitError) Unwrap() error { return ErrConcurrencyLimitExceeded }

// SkewError reports a claimed instant that cannot be reconciled with the
// reference instant it was checked against.
type SkewError struct {
	Op        Op
	Claimed   time.Time
	Reference time.Time
	Detail    string
}

func (e *SkewError) Error() string {
	return fmt.Sprintf("%s: claimed instant %s %s (%s)",
		e.Op, e.Claimed.Format(time.RFC3339), e.Detail, e.Reference.Format(time.RFC3339))
}

func (e *SkewError) Unwrap() error { return ErrClockSkew }

// StoreError wraps an infrastructure failure during an operation.
type StoreError struct {
	Op  Op
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

// Is matches ErrStoreUnavailable while Unwrap keeps the cause reachable.
func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsDomainError reports whether err is an expected, typed engine outcome
// rather than an operational fault.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotAssigned) ||
		errors.Is(err, ErrConcurrencyLimitExceeded) ||
		errors.Is(err, ErrClockSkew) ||
		errors.Is(err, ErrNotFound)
}
