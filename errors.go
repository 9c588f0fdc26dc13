package iconic

import (
	"errors"
	"fmt"
	"time"
)

// ErrClientClosed is returned by every operation attempted after Close.
var ErrClientClosed = errors.New("iconic: client is closed")

// ErrNoMorePages is returned by Pager.Next once the listing is exhausted.
var ErrNoMorePages = errors.New("iconic: no more pages")

// APIError is a non-retryable 4xx response other than 401/404. It carries
// the status code and the server message verbatim.
type APIError struct {
	Status     int
	Code       string
	Message    string
	Method     string
	Path       string
	RequestID  string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf(
		"iconic: API error (status %d) on %s %s: %s",
		e.Status, e.Method, e.Path, e.Message,
	)
}

// AuthError is a credential rejection: the authorization endpoint refused
// the client credentials, returned a malformed token response, or the API
// answered 401 twice in a row even after a forced token refresh. It is
// fatal for the client's credentials and never retried.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("iconic: authentication failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("iconic: authentication failed: %s", e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError is a 404 on an operation targeting a specific identifier.
type NotFoundError struct {
	Method string
	Path   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("iconic: not found: %s %s", e.Method, e.Path)
}

// TransientError is a retryable-classified failure (timeout, 429, 5xx) that
// either exhausted the retry budget or hit a request not marked
// idempotent-safe, in which case the retry decision is left to the caller.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("iconic: transient failure after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RateLimitError is returned when a rate-limiter admission wait is
// cancelled or exceeds the caller's deadline. Ordinary rate limiting is
// transparent: the caller simply waits.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("iconic: rate limit wait aborted: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
