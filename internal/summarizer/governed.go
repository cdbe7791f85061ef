package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"learntracker/internal/ratelimiter"
	"learntracker/internal/retry"
)

// GovernedProvider retries rate-limited and transient failures of the wrapped
// provider with exponential backoff. Invalid and permanent failures, and the
// last failure after exhausting attempts, are returned unchanged.
type GovernedProvider struct {
	provider Provider
	policy   retry.Policy
	pacer    *ratelimiter.RateLimiter
	log      *slog.Logger
}

func Governed(
	provider Provider,
	policy retry.Policy,
	pacer *ratelimiter.RateLimiter,
	log *slog.Logger,
) *GovernedProvider {
	return &GovernedProvider{
		provider: provider,
		policy:   policy,
		pacer:    pacer,
		log:      log,
	}
}

func (g *GovernedProvider) Name() string {
	return g.provider.Name()
}

func (g *GovernedProvider) Summarize(ctx context.Context, req Request) (Candidate, error) {
	var candidate Candidate

	policy := g.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		g.log.WarnContext(ctx, "Retrying provider call",
			"error", err,
			"provider", g.provider.Name(),
			"identity", req.Identity,
			"mode", req.Mode,
			"chunkIndex", req.ChunkIndex,
			"attempt", attempt,
			"delay", delay)
	}

	err := retry.Do(ctx, policy, IsRetryable, func(attemptCtx context.Context, _ int) error {
		if err := g.pacer.Wait(attemptCtx, g.provider.Name()); err != nil {
			return g.attemptError(ctx, err)
		}

		result, err := g.provider.Summarize(attemptCtx, req)
		if err != nil {
			return g.attemptError(ctx, err)
		}

		candidate = result

		return nil
	})
	if err != nil {
		return Candidate{}, err
	}

	return candidate, nil
}

// attemptError makes sure every error leaving an attempt is a *Failure.
// An attempt deadline that expired while the caller is still alive is
// transient.
func (g *GovernedProvider) attemptError(ctx context.Context, err error) error {
	var failure *Failure
	if errors.As(err, &failure) {
		return err
	}

	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return newFailure(g.provider.Name(), KindTransient, err)
	}

	return newFailure(g.provider.Name(), KindPermanent, err)
}
