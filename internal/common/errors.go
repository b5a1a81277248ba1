// Package common defines shared constants and sentinel errors used across
// filevault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Authorization / validation errors.
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")

	// Admission errors. Both are retryable by the caller.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrRateLimited   = errors.New("rate limited")

	// Blob store failures (write, read, delete) and exhausted storage retries.
	ErrStorageIO = errors.New("storage i/o error")
)

// Retryable reports whether a caller may retry an operation that failed with err
// after waiting or freeing space.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExceeded)
}
