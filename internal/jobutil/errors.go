// Package jobutil provides the shared error taxonomy and job lifecycle helpers
// for the pipeline's external calls: status classification, bounded retry with
// backoff, and fixed-interval polling with an attempt ceiling.
//
// Every stage converts failures into degraded results at the smallest possible
// scope; the only error allowed past a stage boundary is *AuthError.
package jobutil

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnconfigured marks a capability whose credential is absent. Stages treat
// it as "skip the network path", not as a failure.
var ErrUnconfigured = errors.New("capability not configured")

// AuthError is a 401 from an external capability. It is fatal for the whole
// run: the credential is wrong and every subsequent call would fail the same way.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication rejected (401)", e.Op)
}

// TransientError is a retryable service failure (HTTP 429 or 5xx).
type TransientError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: transient failure (HTTP %d)", e.Op, e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// TimeoutError marks a polling loop that exhausted its attempt budget without
// reaching a terminal state. It is a soft failure: the unit falls back, siblings
// continue.
type TimeoutError struct {
	Op       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no terminal state after %d polls", e.Op, e.Attempts)
}

// ValidationError marks a malformed input (bad URL, empty payload). The item
// is skipped rather than retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// ClassifyStatus maps an unexpected HTTP status to the error taxonomy.
// 2xx statuses return nil.
func ClassifyStatus(op string, status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &AuthError{Op: op}
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{Op: op, Status: status}
	default:
		return fmt.Errorf("%s: unexpected HTTP %d", op, status)
	}
}

// IsFatal reports whether err must abort the whole run instead of degrading
// a single unit.
func IsFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var tErr *TransientError
	return errors.As(err, &tErr)
}
