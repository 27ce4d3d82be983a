package api

import (
	"errors"
	"fmt"
)

// ErrorCode classifies request failures.
type ErrorCode string

const (
	// CodeBadRequest covers missing or invalid fields and failed business
	// validation (allocation mismatch, unknown serials, ...).
	CodeBadRequest ErrorCode = "BAD_REQUEST"
	// CodeNotFound is returned for unknown instance ids and for ids that
	// belong to a different flow type.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeStateConflict is returned when an action is attempted from a
	// state that has no such edge.
	CodeStateConflict ErrorCode = "STATE_CONFLICT"
	// CodeForbidden is returned when the actor's role may not perform the action.
	CodeForbidden ErrorCode = "FORBIDDEN"
	// CodeVersionConflict is returned when a concurrent writer persisted the
	// instance first.
	CodeVersionConflict ErrorCode = "VERSION_CONFLICT"
	CodeInternal        ErrorCode = "INTERNAL"
)

// Error is the typed error returned by every engine operation.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`

	err error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.err }

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) *Error {
	return newError(CodeBadRequest, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

func StateConflict(format string, args ...any) *Error {
	return newError(CodeStateConflict, format, args...)
}

func Forbidden(reason string) *Error {
	return &Error{Code: CodeForbidden, Message: reason}
}

// VersionConflict wraps a persistence conflict for the given instance.
func VersionConflict(instanceID string, err error) *Error {
	return &Error{
		Code:    CodeVersionConflict,
		Message: fmt.Sprintf("instance %s was modified concurrently", instanceID),
		err:     err,
	}
}

// Internal wraps an unexpected failure (store I/O, codec).
func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Message: err.Error(), err: err}
}

// CodeOf returns the ErrorCode carried by err. Errors that are not *Error
// are reported as CodeInternal; a nil error yields "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
