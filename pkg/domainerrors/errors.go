// Package domainerrors defines the code-bearing error type the service
// layers return and the transport layer translates to HTTP statuses.
//
// Every error carries a public message that is safe to show a caller. The
// underlying cause stays server-side: collaborator and sink internals must
// never leak through a response body.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the error kind for status mapping and logging.
type Code string

const (
	// CodeValidation covers missing or malformed request fields.
	CodeValidation Code = "validation_failed"
	// CodeSessionExpired covers session-lifetime policy violations.
	CodeSessionExpired Code = "session_expired"
	// CodeCollaborator covers failures of the improvement or translation
	// collaborators.
	CodeCollaborator Code = "collaborator_failed"
	// CodeInternal is the fallback for everything else.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a caller-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string // public, stable, generic
	cause   error
}

// New creates a domain error with a public message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an internal cause to a domain error. The cause is reachable
// through errors.Unwrap for logging but never rendered to callers.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the domain error code, defaulting to CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// PublicMessage returns the caller-safe message for an error. Unclassified
// errors get a fixed generic message so internals cannot leak by accident.
func PublicMessage(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "Internal server error"
}
