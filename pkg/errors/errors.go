// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown         = "UNKNOWN_ERROR"
	CodeInvalidTopology = "INVALID_TOPOLOGY"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeShutdown        = "SHUTDOWN_IN_PROGRESS"
	CodeConfigError     = "CONFIG_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrInvalidTopology = New(CodeInvalidTopology, "invalid topology")
	ErrInvalidInput    = New(CodeInvalidInput, "invalid input")
	ErrShutdown        = New(CodeShutdown, "shutdown in progress")
	ErrConfigError     = New(CodeConfigError, "configuration error")
	ErrInternal        = New(CodeInternal, "internal consistency violation")
)

// IsInvalidTopology checks if the error is a topology error.
func IsInvalidTopology(err error) bool {
	return errors.Is(err, ErrInvalidTopology)
}

// IsShutdown checks if the error is a shutdown error.
func IsShutdown(err error) bool {
	return errors.Is(err, ErrShutdown)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
