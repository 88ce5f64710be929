package app

import (
	"errors"
	"fmt"
)

// Sentinels for the application layer. Delivery maps them to status codes
// with errors.Is.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input from the caller.
	ErrValidation = errors.New("validation error")

	// ErrUnavailable indicates a required dependency is not configured or ready.
	ErrUnavailable = errors.New("service unavailable")

	// ErrConflict indicates the resource is in a state that forbids the action.
	ErrConflict = errors.New("conflict")
)

// Error pairs a sentinel with a caller-facing message.
type Error struct {
	kind    error
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return fmt.Sprintf("%s: %v", e.message, e.kind)
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

// Message returns the text that is safe to show to API callers.
func (e *Error) Message() string {
	return e.message
}

// PublicMessage returns the caller-facing message of an app error, or "".
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.message
	}
	return ""
}

// NotFoundError wraps ErrNotFound with a descriptive message.
func NotFoundError(msg string) error {
	return &Error{kind: ErrNotFound, message: msg}
}

// ValidationError wraps ErrValidation with a descriptive message.
func ValidationError(msg string) error {
	return &Error{kind: ErrValidation, message: msg}
}

// UnavailableError wraps ErrUnavailable with a descriptive message.
func UnavailableError(msg string) error {
	return &Error{kind: ErrUnavailable, message: msg}
}

// ConflictError wraps ErrConflict with a descriptive message and cause.
func ConflictError(msg string, cause error) error {
	return &Error{kind: ErrConflict, message: msg, cause: cause}
}
