package errs

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable failure class.
type Kind string

// Failure classes.
const (
	KindNotAvailable Kind = "not_available"
	KindNetwork      Kind = "network"
	KindUnknown      Kind = "unknown"
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
)

// Error is a classified failure with a human-readable message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the same kind, so errors.Is(e, ErrNetwork) holds for network errors.
func (e *Error) Is(target error) bool {
	s := sentinel(e.Kind)
	return s != nil && target == s
}

// New builds a classified error.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Invalid builds an InvalidInput error from a format string.
func Invalid(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the class of err. Unclassified non-nil errors report KindUnknown.
func KindOf(err error) Kind {
	var ce *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ce):
		return ce.Kind
	case errors.Is(err, ErrNotAvailable):
		return KindNotAvailable
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}

// Message returns the human-readable message for a classified error.
func Message(err error) string {
	var ce *Error
	if errors.As(err, &ce) && ce.Msg != "" {
		return ce.Msg
	}
	if s := sentinel(KindOf(err)); s != nil {
		return s.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func sentinel(k Kind) error {
	switch k {
	case KindNotAvailable:
		return ErrNotAvailable
	case KindNetwork:
		return ErrNetwork
	case KindUnknown:
		return ErrUnknown
	case KindInvalidInput:
		return ErrInvalidInput
	case KindNotFound:
		return ErrNotFound
	default:
		return nil
	}
}
