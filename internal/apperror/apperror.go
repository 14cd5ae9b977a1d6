// Package apperror defines the typed error taxonomy shared by all registries.
//
// Every failure in the ledger core wraps exactly one of the sentinel errors
// below, so callers can branch on the kind with errors.Is while still getting
// a message that names the offending entity. A returned error always means the
// operation left no partial state behind.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidState   = errors.New("invalid state")
	ErrInvalidInput   = errors.New("invalid input")
	ErrLimitExceeded  = errors.New("limit exceeded")
	ErrTransferFailed = errors.New("transfer failed")
	ErrPaused         = errors.New("paused")
)

type AppError struct {
	Err     error  // sentinel identifying the kind
	Message string // human-readable description
	Field   string // optional: input field or entity causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found: %v", resource, id),
	}
}

func AlreadyExists(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrAlreadyExists,
		Message: fmt.Sprintf("%s already exists: %v", resource, id),
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func InvalidState(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidState,
		Message: message,
	}
}

func InvalidInput(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidInput,
		Message: message,
		Field:   field,
	}
}

func LimitExceeded(message string) *AppError {
	return &AppError{
		Err:     ErrLimitExceeded,
		Message: message,
	}
}

func TransferFailed(message string) *AppError {
	return &AppError{
		Err:     ErrTransferFailed,
		Message: message,
	}
}

func Paused() *AppError {
	return &AppError{
		Err:     ErrPaused,
		Message: "ledger is paused",
	}
}
