// Package errors provides standardized API error types.
package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a standardized API error response.
// The JSON shape is the service's wire contract: the message is the
// top-level "error" field, structured diagnostics go under "details".
type APIError struct {
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of the error with additional details.
func (e *APIError) WithDetails(details any) *APIError {
	return &APIError{
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Details:    details,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *APIError) WithMessage(message string) *APIError {
	return &APIError{
		Message:    message,
		StatusCode: e.StatusCode,
		Details:    e.Details,
	}
}

// Standard error definitions
var (
	// ErrBadRequest is returned when the request is malformed.
	ErrBadRequest = &APIError{
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	// ErrInternal is returned for unexpected server errors.
	ErrInternal = &APIError{
		Message:    "An internal error occurred",
		StatusCode: http.StatusInternalServerError,
	}
)

// NewValidationError creates a validation error for a specific field.
// Validation errors are rejected before any external process runs.
func NewValidationError(field, message string) *APIError {
	return &APIError{
		Message:    fmt.Sprintf("Validation failed: %s", message),
		StatusCode: http.StatusBadRequest,
		Details: map[string]string{
			"field": field,
			"error": message,
		},
	}
}

// NewConfigurationError creates an error for missing required secrets
// or endpoints. Like validation errors, configuration errors
// short-circuit before the pipeline starts, but they are the
// operator's fault rather than the caller's, so they map to 500.
func NewConfigurationError(message string) *APIError {
	return &APIError{
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// IsAPIError checks if an error is an APIError.
func IsAPIError(err error) bool {
	_, ok := err.(*APIError)
	return ok
}

// AsAPIError converts an error to an APIError if possible.
// Returns ErrInternal if the error is not an APIError.
func AsAPIError(err error) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return ErrInternal
}
