package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultRetries is the number of additional attempts after a failed call.
const DefaultRetries = 3

// Policy controls how many times a network call is retried.
type Policy struct {
	Retries int           // additional attempts after the first (0 = no retry)
	Delay   time.Duration // wait between attempts (0 = immediate)
	Logger  *slog.Logger
}

// DefaultPolicy returns immediate retry with DefaultRetries.
func DefaultPolicy() Policy {
	return Policy{Retries: DefaultRetries}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do stops at the first permanent
// error without consuming the remaining budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// unmark drops a top-level Permanent marker. A marker wrapped by fn's own
// context stays in the chain so that context is kept.
func unmark(err error) error {
	if p, ok := err.(*permanentError); ok {
		return p.err
	}
	return err
}

// Do runs fn until it succeeds, returns a permanent error, or the policy's
// budget is spent. At most p.Retries+1 calls are made and the last error is
// returned unchanged.
func Do[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}

	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if IsPermanent(err) {
			return zero, unmark(err)
		}
		lastErr = err

		remaining := retries - attempt
		if remaining == 0 {
			break
		}
		log.WarnContext(ctx, "Call failed, retrying",
			"op", op, "attempt", attempt+1, "remaining", remaining, "error", err)

		if p.Delay > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(p.Delay):
			}
		}
	}

	return zero, lastErr
}
