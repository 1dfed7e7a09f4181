package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so callers can map them to responses
type ErrorKind string

const (
	ErrKindValidation   ErrorKind = "validation"
	ErrKindNotFound     ErrorKind = "not_found"
	ErrKindForbidden    ErrorKind = "forbidden"
	ErrKindConflict     ErrorKind = "conflict"
	ErrKindInvalidState ErrorKind = "invalid_state"
	ErrKindInternal     ErrorKind = "internal"
)

// AppError is the error type returned by workflow and reminder operations
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func ValidationError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: ErrKindNotFound, Message: fmt.Sprintf(format, args...)}
}

func ForbiddenError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: ErrKindForbidden, Message: fmt.Sprintf(format, args...)}
}

func ConflictError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: ErrKindConflict, Message: fmt.Sprintf(format, args...)}
}

func InvalidStateError(format string, args ...interface{}) *AppError {
	return &AppError{Kind: ErrKindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// InternalError wraps a storage or transaction failure
func InternalError(message string, err error) *AppError {
	return &AppError{Kind: ErrKindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err; errors that are not AppErrors are internal
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrKindInternal
}

// IsKind reports whether err is an AppError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the response status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case ErrKindValidation, ErrKindConflict, ErrKindInvalidState:
		return http.StatusBadRequest
	case ErrKindForbidden:
		return http.StatusForbidden
	case ErrKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show to callers
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != ErrKindInternal {
		return appErr.Message
	}
	return "An unexpected error occurred"
}
