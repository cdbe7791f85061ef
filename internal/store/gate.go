package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"learntracker/internal/domain"
	"learntracker/internal/retry"
)

// Gate checks the store for an existing record right before writing.
// Existence checks are idempotent reads and are retried with the gate's
// policy; writes are attempted exactly once.
type Gate struct {
	store  Store
	policy retry.Policy
	log    *slog.Logger
}

func NewGate(store Store, policy retry.Policy, log *slog.Logger) *Gate {
	return &Gate{
		store:  store,
		policy: policy,
		log:    log,
	}
}

func (g *Gate) Exists(ctx context.Context, identity string) (bool, error) {
	var exists bool

	policy := g.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		g.log.WarnContext(ctx, "Retrying store existence check",
			"error", err,
			"store", g.store.Name(),
			"identity", identity,
			"attempt", attempt,
			"delay", delay)
	}

	err := retry.Do(ctx, policy, IsRetryable, func(attemptCtx context.Context, _ int) error {
		found, err := g.store.Exists(attemptCtx, identity)
		if err != nil {
			return asStoreError(OpExists, err)
		}

		exists = found

		return nil
	})
	if err != nil {
		return false, err
	}

	return exists, nil
}

// Write persists record once. A failed write is never retried here: a
// timed-out write may still have landed.
func (g *Gate) Write(ctx context.Context, record domain.SummaryRecord) error {
	if g.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.policy.Timeout)
		defer cancel()
	}

	if err := g.store.Write(ctx, record); err != nil {
		return asStoreError(OpWrite, err)
	}

	return nil
}

// Persist writes record unless the store already has its identity.
func (g *Gate) Persist(ctx context.Context, record domain.SummaryRecord) (domain.Outcome, error) {
	exists, err := g.Exists(ctx, record.Identity)
	if err != nil {
		return domain.OutcomeFailedPersistence, err
	}
	if exists {
		return domain.OutcomeSkippedDuplicate, nil
	}

	if err = g.Write(ctx, record); err != nil {
		return domain.OutcomeFailedPersistence, err
	}

	return domain.OutcomePersisted, nil
}

func asStoreError(op Op, err error) error {
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return err
	}

	return &Error{
		Op:        op,
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       err,
	}
}
