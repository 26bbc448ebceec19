package bexio

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryPolicy is a reusable retry-with-backoff policy. The delay before
// attempt n (1-based, first retry is n=2) is
// BaseDelay * 2^(n-2) plus up to MaxJitter of random jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	// Retryable decides whether a failed attempt may be retried.
	Retryable func(err error) bool
}

// DefaultWritePolicy is the policy applied to write operations: up to 3
// attempts with 400ms base delay and up to 200ms jitter.
func DefaultWritePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   400 * time.Millisecond,
		MaxJitter:   200 * time.Millisecond,
		Retryable:   IsTransient,
	}
}

// IsTransient reports whether err is a transient failure: a network error,
// a 5xx response, or rate limiting (429).
func IsTransient(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.IsRetryable()
	}
	// Anything that is not a classified remote rejection is treated as a
	// network-level failure.
	return err != nil
}

// Do runs fn until it succeeds, the attempts are exhausted, or the error is
// classified terminal. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := p.BaseDelay << (attempt - 2)
			if p.MaxJitter > 0 {
				delay += time.Duration(rand.Int63n(int64(p.MaxJitter)))
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return err
}
