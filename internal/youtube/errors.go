package youtube

import (
	"errors"
	"fmt"
)

// APIError indicates a non-2xx response from the remote API. These are the
// only failures the scheduled job treats as transient.
type APIError struct {
	// StatusCode is the HTTP status code
	StatusCode int
	// Body is a truncated copy of the response body, for logging
	Body string
}

// Error returns a string representation of the API error.
func (e *APIError) Error() string {
	return fmt.Sprintf("youtube api: status %d", e.StatusCode)
}

// StatusError indicates a thumbnail probe returned a status other than
// 200 or 404. It is permanent and aborts the deletion sweep.
type StatusError struct {
	StatusCode int
	URL        string
}

// Error returns a string representation of the status error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d probing %s", e.StatusCode, e.URL)
}

// PayloadError indicates a response was missing or carried a malformed
// expected field. Permanent, never retried.
type PayloadError struct {
	Field  string
	Reason string
}

// Error returns a string representation of the payload error.
func (e *PayloadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("malformed payload: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed payload: %s: %s", e.Field, e.Reason)
}

// ErrNotFound indicates an expected-one-item response was empty.
var ErrNotFound = errors.New("not found")

// IsTransient reports whether err is a network-layer failure worth retrying.
// Remote API errors and transport errors qualify; empty result sets, payload
// problems and probe status surprises do not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var payloadErr *PayloadError
	if errors.As(err, &payloadErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// TransportError wraps a failure to reach the remote API at all (connection
// refused, timeout, DNS).
type TransportError struct {
	Err error
}

// Error returns a string representation of the transport error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("youtube api: request failed: %v", e.Err)
}

// Unwrap returns the underlying transport failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}
