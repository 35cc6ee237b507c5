// Package dto defines the entry API request/response types and its errors.
//
// Error handling follows a structured pattern:
//   - ErrorCode provides machine-readable error classification
//   - APIError wraps errors with HTTP status codes and details
//   - Constructor functions (NotFound, Conflict, etc.) create common errors
package dto

import (
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"time"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeInvalidBody is returned when the request body is not valid JSON.
	ErrorCodeInvalidBody ErrorCode = "INVALID_BODY"
	// ErrorCodePayloadTooLarge is returned when the request body exceeds the quota.
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"

	// ErrorCodeNotFound is returned when an entry is not found.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeConflict is returned when a key is already used.
	ErrorCodeConflict ErrorCode = "CONFLICT"
	// ErrorCodeMethodNotAllowed is returned for unsupported HTTP methods.
	ErrorCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
	// ErrorCodeRateLimitExceeded is returned when a client is throttled.
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// ErrorCodeStorageError is returned when the backing file can't be read or written.
	ErrorCodeStorageError ErrorCode = "STORAGE_ERROR"
	// ErrorCodeInternal is returned when an unexpected server error occurs.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every API error.
//
// Message is meant for humans. Error carries the underlying cause, when any.
type ErrorResponse struct {
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
	Code    ErrorCode      `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetails adds details to the error.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Message returns the human readable message without the cause.
func (e *APIError) Message() string {
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Response returns the JSON body describing e.
func (e *APIError) Response() *ErrorResponse {
	resp := &ErrorResponse{Message: e.message, Code: e.code}
	if e.wrappedErr != nil {
		resp.Error = e.wrappedErr.Error()
	}
	if len(e.details) > 0 {
		resp.Details = e.details
	}
	return resp
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, resource+" not found")
}

// Conflict creates a 409 Conflict error.
func Conflict(message string) *APIError {
	return NewAPIError(http.StatusConflict, ErrorCodeConflict, message)
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, "Missing required field: "+fieldName).
		WithDetail("field", fieldName)
}

// TooLong creates a 400 Bad Request error for a field over its quota.
func TooLong(fieldName string, limit int) *APIError {
	return BadRequest(fieldName+" exceeds "+strconv.Itoa(limit)+" bytes").
		WithDetails(map[string]any{"field": fieldName, "limit": limit})
}

// InvalidBody creates the 500 error returned for an unparsable request body.
func InvalidBody(err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInvalidBody, "Server error").Wrap(err)
}

// PayloadTooLarge creates a 413 error for a body over limit bytes.
func PayloadTooLarge(limit int64) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "Request body too large").
		WithDetail("limit", limit)
}

// MethodNotAllowed creates a 405 error.
func MethodNotAllowed(method string) *APIError {
	return NewAPIError(http.StatusMethodNotAllowed, ErrorCodeMethodNotAllowed, "Method "+method+" Not Allowed")
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded(retryAfter time.Duration) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrorCodeRateLimitExceeded, "Rate limit exceeded").
		WithDetail("retry_after", int(retryAfter.Seconds()))
}

// StorageError creates a 500 error wrapping a storage failure.
func StorageError(message string, err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeStorageError, message).Wrap(err)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}
