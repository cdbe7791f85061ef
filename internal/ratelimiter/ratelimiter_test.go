package ratelimiter

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWaitDisabled(t *testing.T) {
	rl := PerMinute(0, discardLogger())

	start := time.Now()
	for range 10 {
		require.NoError(t, rl.Wait(context.Background(), "openai"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	var nilLimiter *RateLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "openai"))
}

func TestWaitSpacesCallsPerKey(t *testing.T) {
	rl := New(40*time.Millisecond, discardLogger())
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "a"))
	require.NoError(t, rl.Wait(ctx, "b"))
	assert.Less(t, time.Since(start), 30*time.Millisecond)

	require.NoError(t, rl.Wait(ctx, "a"))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestWaitCanceled(t *testing.T) {
	rl := New(time.Hour, discardLogger())
	require.NoError(t, rl.Wait(context.Background(), "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, rl.Wait(ctx, "a"), context.DeadlineExceeded)
}

func TestForChat(t *testing.T) {
	assert.Equal(t, privateChatRate, ForChat(42))
	assert.Equal(t, groupChatRate, ForChat(-100123))
}
