package store

import (
	"context"
	"errors"
	"fmt"

	"learntracker/internal/domain"
)

// Store is the external knowledge store. It is the only arbiter of
// duplicates: there is no client-side locking around Exists and Write.
type Store interface {
	Name() string
	Exists(ctx context.Context, identity string) (bool, error)
	Write(ctx context.Context, record domain.SummaryRecord) error
}

type Op string

const (
	OpExists Op = "exists"
	OpWrite  Op = "write"
)

// Error is a failed store call. Retryable marks failures worth another
// attempt (network errors, 429, 5xx); it only matters for Exists.
type Error struct {
	Op        Op
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.Retryable
}
