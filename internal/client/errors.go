package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the server answers 401. The caller
	// should log in again.
	ErrUnauthorized = errors.New("authentication failed")
	// ErrRequestTimeout is returned when a single request exceeds its deadline.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrNoActiveAccount is returned when a command needs a stored account.
	ErrNoActiveAccount = errors.New("no active account, run login first")
	// ErrInvalidName is returned for repository or tag names the registry
	// would reject.
	ErrInvalidName = errors.New("invalid repository or tag name")
)

// UpstreamError is a non-2xx answer other than 401.
type UpstreamError struct {
	Status     int
	StatusText string
	// Body is the start of the response body, useful for diagnostics.
	Body string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("request failed: %d %s: %s", e.Status, e.StatusText, e.Body)
	}
	return fmt.Sprintf("request failed: %d %s", e.Status, e.StatusText)
}
