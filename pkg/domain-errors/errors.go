// Package domainerrors carries coded errors across the service boundary.
//
// Stores return sentinel errors (pkg/platform/sentinel); services translate
// them into coded errors here; handlers map codes onto HTTP statuses via
// pkg/platform/httputil.
package domainerrors

import (
	"errors"
)

// Code is the stable, machine-readable error kind surfaced to clients.
type Code string

const (
	CodeValidation      Code = "validation_error"
	CodeInvalidPageSize Code = "invalid_page_size"
	CodeBadRequest      Code = "bad_request"
	CodeUnauthorized    Code = "unauthorized"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeTimeout         Code = "timeout"
	CodeUnavailable     Code = "storage_unavailable"
	CodeInternal        Code = "internal_error"
)

// Error is a coded domain error. Field names the offending input for
// validation failures; State names the current lifecycle state for conflicts.
type Error struct {
	Code    Code
	Message string
	Field   string
	State   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Validation creates a validation error naming the rejected field.
func Validation(field, msg string) error {
	return &Error{Code: CodeValidation, Message: msg, Field: field}
}

// Conflict creates a conflict error naming the entity's current state.
func Conflict(state, msg string) error {
	return &Error{Code: CodeConflict, Message: msg, State: state}
}

// From extracts the outermost coded error from err's chain.
func From(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	de, ok := From(err)
	return ok && de.Code == code
}

// CodeOf returns the error's code, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if de, ok := From(err); ok {
		return de.Code
	}
	return CodeInternal
}
