package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/alexanderramin/timeclock/internal/domain"
)

// RetryPolicy bounds retries of store-unavailable failures.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries a transition up to four times over roughly a
// second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        4,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// RetryStore runs op until it succeeds, fails with anything other than
// ErrStoreUnavailable, or the policy is exhausted. Domain errors are never
// retried.
func RetryStore[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	if policy.MaxTries == 0 {
		policy = DefaultRetryPolicy()
	}
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, domain.ErrStoreUnavailable) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxTries),
	)
}
