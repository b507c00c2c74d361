// Package errors provides structured errors for the bridge with a small
// taxonomy and HTTP status code mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error for metrics, logging and response formatting.
type ErrorType string

const (
	// TypeTransport is a viewer send/receive failure, local to one viewer.
	TypeTransport ErrorType = "transport"
	// TypeDecode is a malformed telemetry line or viewer message (HTTP 400).
	TypeDecode ErrorType = "decode"
	// TypeUpstream is a serial open/read or mirror failure (HTTP 503).
	TypeUpstream ErrorType = "upstream"
	// TypeConfig is a fatal startup error.
	TypeConfig ErrorType = "config"
	// TypeRejected is a viewer refused by connection limits (HTTP 429 by default).
	TypeRejected ErrorType = "rejected"
	// TypeNotFound indicates an unknown route (HTTP 404)
	TypeNotFound ErrorType = "not_found"
	// TypeInternal indicates anything else (HTTP 500)
	TypeInternal ErrorType = "internal"
)

// Error represents a structured error with type, message, and context.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any

	status int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the status set with WithStatus, or the default for the type.
func (e *Error) HTTPStatus() int {
	if e.status != 0 {
		return e.status
	}
	switch e.Type {
	case TypeDecode:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeRejected:
		return http.StatusTooManyRequests
	case TypeUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// TransportError creates a viewer transport error.
func TransportError(message string, cause error) *Error {
	return newError(TypeTransport, message, cause)
}

// DecodeError creates a decode error (HTTP 400).
func DecodeError(message string, cause error) *Error {
	return newError(TypeDecode, message, cause)
}

// UpstreamError creates an upstream error (HTTP 503).
func UpstreamError(message string, cause error) *Error {
	return newError(TypeUpstream, message, cause)
}

// ConfigError creates a configuration error. The process exits on these.
func ConfigError(message string, cause error) *Error {
	return newError(TypeConfig, message, cause)
}

// RejectedError creates a connection-limit rejection (HTTP 429).
func RejectedError(message string) *Error {
	return newError(TypeRejected, message, nil)
}

// NotFoundError creates a new not-found error (HTTP 404).
func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

// InternalError creates a new internal error (HTTP 500).
func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithContext adds context fields to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithStatus overrides the HTTP status (chainable).
func (e *Error) WithStatus(code int) *Error {
	e.status = code
	return e
}

// IsType reports whether err is, or wraps, a structured error of type t.
func IsType(err error, t ErrorType) bool {
	var structuredErr *Error
	return errors.As(err, &structuredErr) && structuredErr.Type == t
}

// ErrorResponse represents the JSON structure sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

// ToResponse converts an Error to an ErrorResponse for JSON serialization.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into a structured Error.
// If err is already an *Error, returns it unchanged.
// Otherwise wraps it as an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
