// Package storecall bounds store calls with a deadline and translates store
// failures into coded domain errors.
package storecall

import (
	"context"
	"errors"
	"time"

	dErrors "kontrakpro/pkg/domain-errors"
	"kontrakpro/pkg/platform/sentinel"
)

// Do runs fn with a context that expires after timeout. A zero timeout
// leaves the caller's deadline in place. Errors are translated for resource.
func Do[T any](ctx context.Context, timeout time.Duration, resource string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, Translate(err, resource)
	}
	return v, nil
}

// Exec is Do for calls that return only an error.
func Exec(ctx context.Context, timeout time.Duration, resource string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, timeout, resource, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Translate maps store errors onto domain codes. Coded errors raised inside
// store callbacks (validation, conflict with state) pass through untouched.
func Translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	if _, ok := dErrors.From(err); ok {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, resource+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, resource+" conflicts with current state")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, resource+" store timed out")
	case errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, resource+" request cancelled")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, resource+" store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, resource+" store failure")
	}
}
