// Package core defines typed errors.
package core

import "errors"

// ErrorCode represents a typed error code.
type ErrorCode string

const (
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	CodeAdmissionTimeout   ErrorCode = "ADMISSION_TIMEOUT"
	CodeRateLimitExhausted ErrorCode = "RATE_LIMIT_EXHAUSTED"
	CodeTransportError     ErrorCode = "TRANSPORT_ERROR"
	CodeCancelled          ErrorCode = "CANCELLED"
	CodeUnavailable        ErrorCode = "UNAVAILABLE"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
)

// AppError is a typed application error.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error returns the error message.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Wrap creates a new AppError.
func Wrap(code ErrorCode, msg string, err error) error {
	return &AppError{Code: code, Message: msg, Err: err}
}

// CodeOf returns the ErrorCode for an error.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ErrInvalidInput indicates validation failures.
var ErrInvalidInput = &AppError{Code: CodeInvalidInput, Message: "invalid input"}

// ErrUnavailable indicates the controller is shutting down.
var ErrUnavailable = &AppError{Code: CodeUnavailable, Message: "controller unavailable"}
