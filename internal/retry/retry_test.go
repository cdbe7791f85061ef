package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTemporary = errors.New("temporary")
	errFatal     = errors.New("fatal")
)

func isTemporary(err error) bool {
	return errors.Is(err, errTemporary)
}

func fastPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0

	err := Do(context.Background(), fastPolicy(3), isTemporary, func(context.Context, int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0

	err := Do(context.Background(), fastPolicy(5), isTemporary, func(context.Context, int) error {
		calls++
		return errFatal
	})

	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	var retries []int

	policy := fastPolicy(4)
	policy.OnRetry = func(attempt int, _ time.Duration, err error) {
		retries = append(retries, attempt)
		assert.ErrorIs(t, err, errTemporary)
	}

	err := Do(context.Background(), policy, isTemporary, func(_ context.Context, attempt int) error {
		calls++
		assert.Equal(t, calls, attempt)
		return errTemporary
	})

	assert.ErrorIs(t, err, errTemporary)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retries)
}

func TestDoRecoversAfterRetry(t *testing.T) {
	calls := 0

	err := Do(context.Background(), fastPolicy(5), isTemporary, func(context.Context, int) error {
		calls++
		if calls < 3 {
			return errTemporary
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoZeroAttemptsCallsOnce(t *testing.T) {
	calls := 0

	_ = Do(context.Background(), Policy{}, isTemporary, func(context.Context, int) error {
		calls++
		return errTemporary
	})

	assert.Equal(t, 1, calls)
}

func TestDoCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	policy := Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	policy.OnRetry = func(int, time.Duration, error) { cancel() }

	err := Do(ctx, policy, isTemporary, func(context.Context, int) error {
		calls++
		return errTemporary
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errTemporary)
}

func TestDoAppliesAttemptTimeout(t *testing.T) {
	policy := fastPolicy(1)
	policy.Timeout = 10 * time.Millisecond

	err := Do(context.Background(), policy, isTemporary, func(ctx context.Context, _ int) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, 10*time.Millisecond)
		<-ctx.Done()
		return ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoff(t *testing.T) {
	policy := Policy{BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 2 * time.Second},
		{attempt: 2, want: 4 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: 4, want: 16 * time.Second},
		{attempt: 5, want: 30 * time.Second},
		{attempt: 60, want: 30 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(policy, tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestJitterWithinCeiling(t *testing.T) {
	for range 100 {
		d := Jitter(50 * time.Millisecond)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
	assert.Zero(t, Jitter(0))
}
