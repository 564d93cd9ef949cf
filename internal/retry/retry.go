// Package retry wraps remote operations with bounded attempts and exponential
// backoff.
package retry

import (
	"context"
	"fmt"
	"time"

	"wavelift/internal/services"
)

// Policy configures one retry boundary.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the sleep after the first failure; each further failure doubles it.
	BaseDelay time.Duration
	// Timeout bounds each attempt when positive. An expired attempt is a
	// transient failure.
	Timeout time.Duration
	// IsRetryable decides whether a failure may be retried. Defaults to
	// services.Retryable.
	IsRetryable func(error) bool
	// Sleep waits between attempts. Tests replace it to observe backoff.
	Sleep func(context.Context, time.Duration) error
	// OnRetry is invoked before each sleep with the 1-based failed attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Delay returns the backoff before retrying after the given 0-indexed failed attempt.
func (p Policy) Delay(i int) time.Duration {
	if p.BaseDelay <= 0 || i < 0 {
		return 0
	}
	return p.BaseDelay << uint(i)
}

// Do runs op until it succeeds, the attempts are exhausted, or a
// non-retryable error is returned. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.IsRetryable
	if retryable == nil {
		retryable = services.Retryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}
		value, err := attempt(ctx, p.Timeout, op)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if !retryable(err) || i == attempts-1 {
			break
		}
		delay := p.Delay(i)
		if p.OnRetry != nil {
			p.OnRetry(i+1, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			break
		}
	}
	return zero, lastErr
}

// Run is Do for operations without a result value.
func Run(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func attempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	value, err := op(attemptCtx)
	if err != nil && attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return value, services.Wrap(services.ErrTimeout, "retry", "attempt", fmt.Sprintf("timed out after %s", timeout), err)
	}
	return value, err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
