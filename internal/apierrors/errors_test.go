package apierrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "status code only",
			err:      &Error{StatusCode: 500},
			expected: "API error 500",
		},
		{
			name:     "with message",
			err:      &Error{StatusCode: 400, Message: "bad request"},
			expected: "API error 400: bad request",
		},
		{
			name:     "with code",
			err:      &Error{StatusCode: 422, Message: "invalid total", Code: "VALIDATION_ERROR"},
			expected: "API error 422: invalid total (code: VALIDATION_ERROR)",
		},
		{
			name:     "with request ID",
			err:      &Error{StatusCode: 500, RequestID: "req-123"},
			expected: "API error 500 (request_id: req-123)",
		},
		{
			name:     "transport failure",
			err:      &Error{Message: "request failed", Err: errors.New("connection refused")},
			expected: "request failed: connection refused",
		},
		{
			name:     "no status and no message",
			err:      &Error{},
			expected: "API request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		target   error
		expected bool
	}{
		{"401 matches ErrUnauthorized", &Error{StatusCode: 401}, ErrUnauthorized, true},
		{"403 matches ErrForbidden", &Error{StatusCode: 403}, ErrForbidden, true},
		{"404 matches ErrNotFound", &Error{StatusCode: 404}, ErrNotFound, true},
		{"429 matches ErrRateLimited", &Error{StatusCode: 429}, ErrRateLimited, true},
		{"429 does not match ErrNotFound", &Error{StatusCode: 429}, ErrNotFound, false},
		{"500 matches nothing", &Error{StatusCode: 500}, ErrRateLimited, false},
		{"kind matches", &Error{Kind: ErrProcessingFailed}, ErrProcessingFailed, true},
		{"kind does not match other", &Error{Kind: ErrProcessingFailed}, ErrProcessingTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("errors.Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestError_UnwrapChain(t *testing.T) {
	last := &Error{StatusCode: 429, Message: "slow down"}
	err := New(ErrMaxRetriesExceeded, "max retries exceeded", last)

	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("expected ErrMaxRetriesExceeded")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("expected wrapped 429 to match ErrRateLimited")
	}
	if got := err.Error(); got != "max retries exceeded: API error 429: slow down" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(&Error{StatusCode: 404}); got != 404 {
		t.Errorf("StatusCode() = %d, want 404", got)
	}
	wrapped := fmt.Errorf("get receipt: %w", &Error{StatusCode: 503})
	if got := StatusCode(wrapped); got != 503 {
		t.Errorf("StatusCode(wrapped) = %d, want 503", got)
	}
	if got := StatusCode(errors.New("plain")); got != 0 {
		t.Errorf("StatusCode(plain) = %d, want 0", got)
	}
}
