package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Adapter failure taxonomy. Adapters translate backend-specific faults into
// these at their boundary.
var (
	// ErrAuthentication means the backend rejected our credentials. Fatal,
	// never retried.
	ErrAuthentication = errors.New("llm: authentication failed")

	// ErrRateLimited means the backend throttled the request. Retryable.
	ErrRateLimited = errors.New("llm: rate limited")

	// ErrUnavailable means the backend failed transiently. Retryable.
	ErrUnavailable = errors.New("llm: backend unavailable")

	// ErrMalformedResponse means the backend returned data the adapter
	// could not use. Surfaced as a turn failure, not retried.
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// IsTransient reports whether the error may succeed on retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable)
}

// translateStatus maps an HTTP status from a backend into the taxonomy.
func translateStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
}

// passthrough reports whether the error should cross the boundary untouched
// (caller cancellation and deadlines are not backend faults).
func passthrough(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
