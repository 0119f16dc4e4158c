// Package errors provides unified error handling with structured error codes.
// Codes are shared with the decision layer through JSON error payloads.
package errors

import (
	"fmt"
	"net/http"
)

// Code identifies an error category across the API boundary.
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeTimeout          Code = "TIMEOUT"
	CodeShapeMismatch    Code = "SHAPE_MISMATCH"
	CodeInvalidDims      Code = "INVALID_DIMENSIONS"
	CodeWindowNotFound   Code = "WINDOW_NOT_FOUND"
	CodeCaptureFailed    Code = "CAPTURE_FAILED"
	CodeOCRUnavailable   Code = "OCR_ENGINE_UNAVAILABLE"
	CodeOCRTimeout       Code = "OCR_TIMEOUT"
	CodeValidationFailed Code = "VALIDATION_FAILED"
)

// httpStatusMap maps error codes to HTTP status codes for the REST surface.
var httpStatusMap = map[Code]int{
	CodeUnknown:          http.StatusInternalServerError,
	CodeInternal:         http.StatusInternalServerError,
	CodeInvalidArgument:  http.StatusBadRequest,
	CodeUnavailable:      http.StatusServiceUnavailable,
	CodeTimeout:          http.StatusGatewayTimeout,
	CodeShapeMismatch:    http.StatusBadRequest,
	CodeInvalidDims:      http.StatusBadRequest,
	CodeWindowNotFound:   http.StatusNotFound,
	CodeCaptureFailed:    http.StatusServiceUnavailable,
	CodeOCRUnavailable:   http.StatusServiceUnavailable,
	CodeOCRTimeout:       http.StatusGatewayTimeout,
	CodeValidationFailed: http.StatusUnprocessableEntity,
}

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// HTTPStatus returns the corresponding HTTP status code.
func (e *AppError) HTTPStatus() int {
	if s, ok := httpStatusMap[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// AsAppError extracts an AppError if present, wrapping plain errors under
// CodeUnknown.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable by the caller.
// Engine absence and shape/validation errors are deliberately excluded: retrying
// a missing executable or a malformed buffer cannot succeed.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeUnavailable, CodeTimeout, CodeOCRTimeout, CodeCaptureFailed:
		return true
	default:
		return false
	}
}
