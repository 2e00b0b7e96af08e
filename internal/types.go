// internal/types.go - Common types for internal packages
package internal

import "errors"

// Error represents application-specific errors
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new application error
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode constants for common error types
const (
	ErrorCodeInvalidBbox         = "INVALID_BBOX"
	ErrorCodeOutOfBounds         = "OUT_OF_BOUNDS"
	ErrorCodeResolutionTooCoarse = "RESOLUTION_TOO_COARSE"
	ErrorCodeInvalidResolution   = "INVALID_RESOLUTION"
	ErrorCodeSourceUnavailable   = "SOURCE_UNAVAILABLE"
	ErrorCodeFetch               = "FETCH_ERROR"
	ErrorCodeValidation          = "VALIDATION_ERROR"
	ErrorCodeFileSystem          = "FILESYSTEM_ERROR"
)

// CodeOf returns the error code carried by err, or an empty string
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
