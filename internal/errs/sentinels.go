// Package errs contains sentinel errors and the classified error type surfaced to callers.
package errs

import "errors"

// Sentinels across store/client/service layers.
var (
	// ErrNotAvailable indicates there is no signed-in account or the account is restricted.
	ErrNotAvailable = errors.New("remote store is not available")

	// ErrNetwork indicates a transport failure, time-out or rate limiting.
	ErrNetwork = errors.New("network error")

	// ErrUnknown indicates the store returned neither a value nor an error.
	ErrUnknown = errors.New("an unknown error occurred")

	// ErrInvalidInput indicates a malformed caller payload, detected before any remote call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the addressed record does not exist.
	ErrNotFound = errors.New("not found")
)
