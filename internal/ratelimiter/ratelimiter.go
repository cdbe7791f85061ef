package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
)

// RateLimiter spaces out calls per key (a provider name, a chat) so that at
// most one call per interval leaves the process for each key.
type RateLimiter struct {
	interval time.Duration
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	log      *slog.Logger
}

// New returns a limiter allowing one call per interval per key.
// A non-positive interval disables limiting.
func New(interval time.Duration, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
		log:      log,
	}
}

// PerMinute returns a limiter allowing rpm calls per minute per key.
// Zero rpm disables limiting.
func PerMinute(rpm int, log *slog.Logger) *RateLimiter {
	if rpm <= 0 {
		return New(0, log)
	}

	return New(time.Minute/time.Duration(rpm), log)
}

// ForChat returns the Telegram pacing interval for a chat: groups and
// channels have negative ids and a stricter limit.
func ForChat(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}

// Wait blocks until the next call for key may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	if rl == nil || rl.interval <= 0 {
		return nil
	}

	limiter := rl.limiter(key)

	reservation := limiter.Reserve()
	delay := reservation.Delay()
	if delay == 0 {
		return nil
	}

	rl.log.DebugContext(ctx, "Rate limiting request",
		"key", key,
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.Cancel()
		return ctx.Err()
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(rl.interval), 1)
		rl.limiters[key] = limiter
	}

	return limiter
}
