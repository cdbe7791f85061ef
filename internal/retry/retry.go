package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy bounds one retried operation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Timeout applies to each attempt separately. Zero means no per-attempt deadline.
	Timeout time.Duration
	// OnRetry is called before sleeping between attempts.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Func is one attempt. attempt is 1-based.
type Func func(ctx context.Context, attempt int) error

// Do calls fn until it succeeds, returns an error retryable rejects, or
// MaxAttempts calls have been made. The last error is returned unchanged.
// Cancellation during backoff returns the context error joined with the last
// attempt's error.
func Do(ctx context.Context, policy Policy, retryable func(error) bool, fn Func) error {
	maxAttempts := max(1, policy.MaxAttempts)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return errors.Join(err, lastErr)
			}
			return err
		}

		lastErr = call(ctx, policy.Timeout, attempt, fn)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts || retryable == nil || !retryable(lastErr) {
			return lastErr
		}

		delay := Jitter(Backoff(policy, attempt))
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}

	return lastErr
}

func call(ctx context.Context, timeout time.Duration, attempt int, fn Func) error {
	if timeout <= 0 {
		return fn(ctx, attempt)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(attemptCtx, attempt)
}

// Backoff returns the delay ceiling after the given failed attempt:
// BaseDelay*2^(attempt-1), capped at MaxDelay.
func Backoff(policy Policy, attempt int) time.Duration {
	delay := policy.BaseDelay
	if delay <= 0 {
		return 0
	}

	for i := 1; i < attempt; i++ {
		if policy.MaxDelay > 0 && delay >= policy.MaxDelay {
			break
		}
		delay *= 2
	}

	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	return delay
}

// Jitter picks a uniformly random delay in [0, ceiling].
func Jitter(ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		return 0
	}

	return time.Duration(rand.Int64N(int64(ceiling) + 1))
}
