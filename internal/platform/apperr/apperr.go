// Package apperr defines the error kinds shared by every service and the
// HTTP status each kind maps to. Services return *Error values; callers
// branch on the kind with errors.Is.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds.
var (
	ErrValidation = errors.New("validation failed")
	ErrAuth       = errors.New("authentication failed")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Error is a classified error whose Message is safe to show to the caller.
type Error struct {
	Kind    error
	Message string
	// Fields are merged into the error envelope (e.g. conflict_id).
	Fields map[string]interface{}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// With returns a copy of e carrying an extra envelope field.
func (e *Error) With(key string, value interface{}) *Error {
	fields := make(map[string]interface{}, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &Error{Kind: e.Kind, Message: e.Message, Fields: fields}
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(ErrValidation, format, args...)
}

func Auth(format string, args ...interface{}) *Error {
	return newError(ErrAuth, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(ErrForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(ErrNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(ErrConflict, format, args...)
}

// StatusCode maps err to an HTTP status. Unclassified errors are store
// failures and map to 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
