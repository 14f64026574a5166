package unifi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when the controller does not expose an endpoint.
var ErrNotFound = errors.New("endpoint not found")

// AuthError is returned when the controller rejects the credentials.
type AuthError struct {
	StatusCode int
	Msg        string
}

func (e *AuthError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("authentication failed (HTTP %d): %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("authentication failed (HTTP %d)", e.StatusCode)
}

// HTTPError is a non-success controller response other than an auth failure.
type HTTPError struct {
	StatusCode int
	Path       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// RateLimited reports whether the controller answered 429.
func (e *HTTPError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// DecodeError wraps malformed controller responses.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
