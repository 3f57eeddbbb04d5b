// Package apierrors provides the shared error type for the Mataresit client.
package apierrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingAPIKey is returned when no API key is provided.
	ErrMissingAPIKey = errors.New("API key is required")

	// ErrUnauthorized is returned when the API key is invalid or expired.
	ErrUnauthorized = errors.New("invalid or expired API key")

	// ErrForbidden is returned when the API key lacks the scope for a call.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrNotFound is returned when the addressed resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrMaxRetriesExceeded is returned when every retry attempt was rate limited.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrProcessingFailed is returned when the server reports a failed receipt.
	ErrProcessingFailed = errors.New("receipt processing failed")

	// ErrProcessingTimeout is returned when a receipt stays pending past the wait limit.
	ErrProcessingTimeout = errors.New("receipt processing timeout")

	// ErrInvalidBatchSize is returned when a bulk upload is given a batch size below 1.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrInvalidArgument is returned when a call is rejected before any request is sent.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error is the single error kind returned by the client.
//
// StatusCode is zero for failures that never produced an HTTP response
// (transport errors, client-side retry exhaustion, polling outcomes).
type Error struct {
	Message    string
	StatusCode int
	Code       string // machine error code, if the server supplied one
	RequestID  string
	Kind       error // sentinel for errors raised by the client itself
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, "API error %d", e.StatusCode)
		if e.Message != "" {
			b.WriteString(": ")
			b.WriteString(e.Message)
		}
	} else if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString("API request failed")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (code: %s)", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request_id: %s)", e.RequestID)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && target == e.Kind {
		return true
	}
	switch e.StatusCode {
	case 401:
		return target == ErrUnauthorized
	case 403:
		return target == ErrForbidden
	case 404:
		return target == ErrNotFound
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// New returns an Error classified by kind, with no HTTP status.
func New(kind error, message string, cause error) *Error {
	return &Error{
		Message: message,
		Kind:    kind,
		Err:     cause,
	}
}

// StatusCode returns the HTTP status carried by err, or 0 if there is none.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
