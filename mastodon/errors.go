// ABOUTME: Error hierarchy for the Mastodon API client.
// ABOUTME: Maps HTTP status codes to typed errors that carry retryability for the retry loop.
package mastodon

import (
	"fmt"
	"strconv"
	"time"
)

// APIError is an error response from a Mastodon instance.
type APIError struct {
	StatusCode int
	Message    string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mastodon: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("mastodon: HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether repeating the request may succeed.
func (e *APIError) IsRetryable() bool {
	return e.Retryable
}

// NotFoundError is a 404, usually a status that was deleted. Not retryable.
type NotFoundError struct {
	APIError
}

func (e *NotFoundError) Error() string     { return e.APIError.Error() }
func (e *NotFoundError) IsRetryable() bool { return false }

func (e *NotFoundError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// RateLimitError is a 429. Retryable after RetryAfter.
type RateLimitError struct {
	APIError
}

func (e *RateLimitError) Error() string     { return e.APIError.Error() }
func (e *RateLimitError) IsRetryable() bool { return true }

func (e *RateLimitError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// ServerError is a 5xx. Retryable.
type ServerError struct {
	APIError
}

func (e *ServerError) Error() string     { return e.APIError.Error() }
func (e *ServerError) IsRetryable() bool { return true }

func (e *ServerError) As(target any) bool {
	if t, ok := target.(**APIError); ok {
		*t = &e.APIError
		return true
	}
	return false
}

// NetworkError wraps a transport failure before any response arrived.
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string     { return "mastodon: network error: " + e.Cause.Error() }
func (e *NetworkError) Unwrap() error     { return e.Cause }
func (e *NetworkError) IsRetryable() bool { return true }

// DecodeError is a response body that could not be parsed.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string     { return "mastodon: decode response: " + e.Cause.Error() }
func (e *DecodeError) Unwrap() error     { return e.Cause }
func (e *DecodeError) IsRetryable() bool { return false }

// errorFromStatus builds the typed error for a non-2xx response.
func errorFromStatus(statusCode int, message, retryAfter string) error {
	base := APIError{StatusCode: statusCode, Message: message}
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		base.RetryAfter = time.Duration(secs) * time.Second
	}

	switch {
	case statusCode == 404:
		return &NotFoundError{APIError: base}
	case statusCode == 429:
		base.Retryable = true
		return &RateLimitError{APIError: base}
	case statusCode >= 500 && statusCode <= 599:
		base.Retryable = true
		return &ServerError{APIError: base}
	default:
		return &base
	}
}
