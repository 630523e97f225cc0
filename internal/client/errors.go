package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a backend API failure.
type ErrorKind string

const (
	// KindTransport covers connection failures, timeouts, and cancelled
	// requests. Always retryable.
	KindTransport ErrorKind = "transport"

	// KindUnauthorized is a 401. Never retryable, never queued.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindForbidden is a 403. Never retryable, never queued.
	KindForbidden ErrorKind = "forbidden"

	// KindNotFound is a 404. The operation target no longer exists.
	KindNotFound ErrorKind = "not_found"

	// KindRateLimited is a 429. Retryable with backoff.
	KindRateLimited ErrorKind = "rate_limited"

	// KindServer is any 5xx. Retryable with backoff.
	KindServer ErrorKind = "server"

	// KindDecode is a payload shape mismatch. A programming or version
	// error, not a transient condition.
	KindDecode ErrorKind = "decode"

	// KindInvalidRequest is any other 4xx.
	KindInvalidRequest ErrorKind = "invalid_request"
)

// APIError is the typed failure surfaced by the gateway.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode > 0:
		return fmt.Sprintf("api error (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("api error (%s): %v", e.Kind, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("api error (%s, status %d)", e.Kind, e.StatusCode)
	default:
		return fmt.Sprintf("api error (%s)", e.Kind)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class is worth retrying or queueing.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindServer, KindRateLimited:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a connectivity-class gateway failure.
// Non-gateway errors are treated as not retryable.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return KindUnauthorized
	case code == http.StatusForbidden:
		return KindForbidden
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code >= 500:
		return KindServer
	default:
		return KindInvalidRequest
	}
}

// statusError builds the APIError for a non-2xx response.
func statusError(code int) *APIError {
	return &APIError{Kind: classifyStatus(code), StatusCode: code}
}

// transportError wraps a connection-level failure.
func transportError(err error) *APIError {
	return &APIError{Kind: KindTransport, Err: err}
}

// decodeError wraps a payload unmarshalling failure.
func decodeError(err error) *APIError {
	return &APIError{Kind: KindDecode, Err: err}
}
