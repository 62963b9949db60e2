package jobutil

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryAttempts is the fixed attempt count for transient service failures.
const RetryAttempts = 3

// Retry runs fn up to attempts times, sleeping between tries with a linearly
// increasing delay (baseDelay, 2*baseDelay, ...). Only transient errors are
// retried; auth, timeout, and validation errors return immediately.
func Retry(ctx context.Context, op string, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) || attempt == attempts {
			return err
		}

		delay := time.Duration(attempt) * baseDelay
		log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// Poll invokes check at fixed intervals until it reports done, fails, or the
// attempt ceiling is reached. Exceeding the ceiling is a *TimeoutError, never
// an infinite wait. Context cancellation is treated the same way as a timeout
// so callers fall back per their stage policy.
func Poll(ctx context.Context, op string, interval time.Duration, maxAttempts int, check func() (done bool, err error)) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return &TimeoutError{Op: op, Attempts: attempt}
		case <-time.After(interval):
		}
	}
	return &TimeoutError{Op: op, Attempts: maxAttempts}
}
