// Package apperr defines the typed error taxonomy shared by every component:
// the four wire-visible codes plus two internal-only classes used by the
// extraction worker to decide between retry and terminal failure.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a wire-visible or internal error classification.
type Code string

const (
	// Wire-visible codes, returned in an RPC response's {code, message, details?}.
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeMaxAttempts   Code = "MAX_ATTEMPTS_EXCEEDED"
	CodeTransient     Code = "TRANSIENT_FAILURE"

	// Internal-only codes. Never put on the wire directly; the worker maps
	// both to a job status transition and logs the detail.
	CodePermanent   Code = "PERMANENT_FAILURE"
	CodeConsistency Code = "CONSISTENCY_FAILURE"
)

// Error is the typed error carried through the system. Internal errors are
// never swallowed: every fallible call either returns one of these or wraps
// one with fmt.Errorf("%w").
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func NotFound(id string) *Error {
	return &Error{Code: CodeNotFound, Message: "not found", Details: map[string]any{"id": id}}
}

func Transient(message string, err error) *Error {
	return Wrap(CodeTransient, message, err)
}

func Permanent(message string, err error) *Error {
	return Wrap(CodePermanent, message, err)
}

func Consistency(message string, err error) *Error {
	return Wrap(CodeConsistency, message, err)
}

// CodeOf extracts the Code from err, defaulting to an empty Code if err is
// not (or does not wrap) an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsTransient reports whether err should be retried by a worker or bubbled
// up to a caller as TRANSIENT_FAILURE.
func IsTransient(err error) bool {
	return CodeOf(err) == CodeTransient
}

// IsPermanent reports whether err is terminal for a job (schema validation,
// missing revision, authorization) with no further retries.
func IsPermanent(err error) bool {
	switch CodeOf(err) {
	case CodePermanent, CodeConsistency:
		return true
	default:
		return false
	}
}
