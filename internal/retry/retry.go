// Package retry implements exponential backoff with jitter for the
// bounded-retry behaviors spec.md calls for: transient FileSystemPort
// read errors in the watcher (C3, default 3 attempts) and the
// RETRY_OPERATION recovery strategy in the error coordinator (C9).
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Predicate decides whether an error should trigger another attempt.
// A nil Predicate treats every non-nil error as retryable.
type Predicate interface {
	IsRetryable(err error) bool
}

// PredicateFunc adapts a plain function to Predicate.
type PredicateFunc func(err error) bool

// IsRetryable implements Predicate.
func (f PredicateFunc) IsRetryable(err error) bool { return f(err) }

// Policy configures exponential backoff.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      bool
	ShouldRetry Predicate
}

// DefaultPolicy returns the spec.md default: 3 attempts, 100ms base
// delay, 2x multiplier, jitter enabled.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Do executes operation, retrying on failure according to policy.
// Context cancellation during a backoff sleep returns ctx.Err()
// immediately.
func Do(ctx context.Context, policy Policy, operation func() error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}

	delay := policy.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if !shouldRetry(lastErr, policy.ShouldRetry) {
			return lastErr
		}

		if attempt == policy.MaxAttempts {
			break
		}

		if !wait(ctx, delay) {
			return ctx.Err()
		}

		delay = nextDelay(delay, policy)
	}

	return fmt.Errorf("operation failed after %d attempts: %w", policy.MaxAttempts, lastErr)
}

func shouldRetry(err error, p Predicate) bool {
	if err == nil {
		return false
	}
	if p == nil {
		return true
	}
	return p.IsRetryable(err)
}

func wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func nextDelay(current time.Duration, policy Policy) time.Duration {
	next := time.Duration(float64(current) * policy.Multiplier)
	if policy.MaxDelay > 0 && next > policy.MaxDelay {
		next = policy.MaxDelay
	}
	if policy.Jitter {
		next += time.Duration(float64(next) * 0.1 * rand.Float64())
	}
	return next
}
