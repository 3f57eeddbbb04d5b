package mataresit

import "github.com/mataresit/mataresit-go/internal/apierrors"

// Error is the error type returned by every Client method. StatusCode is zero
// when no HTTP response was received (transport failures, retry exhaustion,
// processing failures and timeouts). Use errors.Is with the sentinels below to
// classify it.
type Error = apierrors.Error

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingAPIKey is returned when no API key is provided.
	ErrMissingAPIKey = apierrors.ErrMissingAPIKey

	// ErrUnauthorized is returned when the API key is invalid or expired (401).
	ErrUnauthorized = apierrors.ErrUnauthorized

	// ErrForbidden is returned when the API key lacks a required scope (403).
	ErrForbidden = apierrors.ErrForbidden

	// ErrNotFound is returned when a receipt, claim or team does not exist (404).
	ErrNotFound = apierrors.ErrNotFound

	// ErrRateLimited is returned when the API rate limit is exceeded (429).
	ErrRateLimited = apierrors.ErrRateLimited

	// ErrMaxRetriesExceeded is returned when every retry attempt was rate limited.
	ErrMaxRetriesExceeded = apierrors.ErrMaxRetriesExceeded

	// ErrProcessingFailed is returned when the server marks a receipt as failed.
	ErrProcessingFailed = apierrors.ErrProcessingFailed

	// ErrProcessingTimeout is returned when a receipt is still pending after the max wait.
	ErrProcessingTimeout = apierrors.ErrProcessingTimeout

	// ErrInvalidBatchSize is returned when BulkUpload is given a batch size below 1.
	ErrInvalidBatchSize = apierrors.ErrInvalidBatchSize

	// ErrInvalidArgument is returned for a missing ID or nil input, before any request is sent.
	ErrInvalidArgument = apierrors.ErrInvalidArgument
)

func invalidArgument(message string) error {
	return apierrors.New(ErrInvalidArgument, message, nil)
}

// StatusCode returns the HTTP status code carried by err, or 0 if none.
func StatusCode(err error) int {
	return apierrors.StatusCode(err)
}
