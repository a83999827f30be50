package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrMalformedPrincipal = errors.New("malformed principal")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// UserNotFound reports that no user exists with the given id.
func UserNotFound(id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("user not found with id %d", id),
	}
}

// UserNotFoundByUsername reports that no user exists with the given username.
func UserNotFoundByUsername(username string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("user not found with username %s", username),
	}
}

// GroupNotFound reports that no group exists with the given id.
//
// The message text is load-bearing: existing callers pattern-match on
// "There is no group with id <id>", so the wording must not change.
func GroupNotFound(id int64) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("There is no group with id %d", id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// MalformedPrincipal reports that a token's claim list could not be parsed
// into a principal. Callers must treat the request as unauthenticated
// rather than fail the whole request.
func MalformedPrincipal(message string) *AppError {
	return &AppError{
		Err:     ErrMalformedPrincipal,
		Message: message,
	}
}
