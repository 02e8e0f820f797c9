// Package apperr defines the error taxonomy surfaced by account operations and
// the single table mapping each kind to an HTTP status.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindAuth         Kind = "auth"
	KindUnauthorized Kind = "unauthorized"
	KindRevoked      Kind = "revoked"
	KindUpload       Kind = "upload"
	KindInternal     Kind = "internal"

	KindMethodNotAllowed Kind = "method_not_allowed"
)

var statuses = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindConflict:     http.StatusConflict,
	KindNotFound:     http.StatusNotFound,
	KindAuth:         http.StatusUnauthorized,
	KindUnauthorized: http.StatusUnauthorized,
	KindRevoked:      http.StatusUnauthorized,
	KindUpload:       http.StatusBadGateway,
	KindInternal:     http.StatusInternalServerError,

	KindMethodNotAllowed: http.StatusMethodNotAllowed,
}

// Error is a classified error carrying a client-safe message. The cause is
// kept for logging and errors.Is matching and never rendered to clients.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status for the error's kind.
func (e *Error) Status() int { return Status(e.Kind) }

// New creates an error of the given kind.
func New(kind Kind, message string, details ...string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap creates an error of the given kind around cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func Validation(message string, details ...string) *Error {
	return New(KindValidation, message, details...)
}

func Conflict(message string) *Error { return New(KindConflict, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Unauthorized(cause error, message string) *Error {
	return Wrap(KindUnauthorized, cause, message)
}

func Internal(cause error, message string) *Error {
	return Wrap(KindInternal, cause, message)
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	if s, ok := statuses[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// As extracts an *Error from err. Errors outside the taxonomy are reported as
// internal errors wrapping the original.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, "internal server error")
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
