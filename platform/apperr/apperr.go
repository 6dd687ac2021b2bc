// Package apperr provides standardized typed errors for the application.
// The message processor branches on the error kind to decide whether a
// failure is terminal for the message, absorbed by a fallback, or a reason
// to release the claim for a later retry.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindTerminal indicates a per-message failure that retrying cannot fix
	// (decrypt failure, malformed input). The message is marked processed.
	KindTerminal
	// KindTransient indicates a temporary external failure (generation
	// service timeout or bad output). Call-sites absorb these with fallbacks.
	KindTransient
	// KindNotFound indicates a record was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindInternal indicates an unexpected failure (store write, programming
	// error). The claim is released so a later dispatch cycle retries.
	KindInternal
)

// Error is a typed error with a Kind for failure-policy decisions.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// Convenience constructors for common error types.

// Terminal creates a terminal-per-message error.
func Terminal(message string) *Error {
	return New(KindTerminal, message)
}

// Transient creates a transient-external error.
func Transient(message string) *Error {
	return New(KindTransient, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Internal creates an unexpected-fatal error.
func Internal(message string) *Error {
	return New(KindInternal, message)
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindTerminal:
		return http.StatusBadRequest
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetKind extracts the error kind from an error, unwrapping as needed.
// Returns KindUnknown if no *Error is in the chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err carries the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
