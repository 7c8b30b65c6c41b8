// Package errors defines the error taxonomy shared by the scoring engine,
// the feature-vector providers and the services built on top of them.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrParse            = errors.New("parse error")
	ErrLookup           = errors.New("lookup error")
	ErrIndexConsistency = errors.New("index consistency error")
	ErrIO               = errors.New("io error")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Configurationf builds an ErrConfiguration error.
func Configurationf(format string, args ...any) *AppError {
	return Newf(ErrConfiguration, http.StatusBadRequest, format, args...)
}

// Parsef builds an ErrParse error.
func Parsef(format string, args ...any) *AppError {
	return Newf(ErrParse, http.StatusUnprocessableEntity, format, args...)
}

// Lookupf builds an ErrLookup error.
func Lookupf(format string, args ...any) *AppError {
	return Newf(ErrLookup, http.StatusNotFound, format, args...)
}

// IndexConsistencyf builds an ErrIndexConsistency error.
func IndexConsistencyf(format string, args ...any) *AppError {
	return Newf(ErrIndexConsistency, http.StatusInternalServerError, format, args...)
}

// IOf builds an ErrIO error.
func IOf(format string, args ...any) *AppError {
	return Newf(ErrIO, http.StatusInternalServerError, format, args...)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrLookup):
		return http.StatusNotFound
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ExitCode maps an error to a process exit status for the command-line tools.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrInvalidInput):
		return 2
	case errors.Is(err, ErrParse):
		return 3
	case errors.Is(err, ErrLookup):
		return 4
	case errors.Is(err, ErrIndexConsistency):
		return 5
	case errors.Is(err, ErrIO):
		return 6
	default:
		return 1
	}
}
