// Package errors provides standardized error handling for the channel console.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the console API.
type ErrorCode string

const (
	// Validation errors
	CC_VALIDATION     ErrorCode = "CC_VALIDATION"     // General validation error
	CC_SCHEMA_REJECT  ErrorCode = "CC_SCHEMA_REJECT"  // Channel document failed structural validation
	CC_BAD_REQUEST    ErrorCode = "CC_BAD_REQUEST"    // Bad request
	CC_CURSOR_INVALID ErrorCode = "CC_CURSOR_INVALID" // Invalid cursor
	CC_UNKNOWN_ACTION ErrorCode = "CC_UNKNOWN_ACTION" // Action type not registered

	// Authentication/Authorization errors
	CC_AUTHZ         ErrorCode = "CC_AUTHZ"         // Authorization failed
	CC_AUTHN         ErrorCode = "CC_AUTHN"         // Authentication failed
	CC_JWT_INVALID   ErrorCode = "CC_JWT_INVALID"   // Invalid JWT
	CC_JWT_EXPIRED   ErrorCode = "CC_JWT_EXPIRED"   // Expired JWT
	CC_JWT_MALFORMED ErrorCode = "CC_JWT_MALFORMED" // Malformed JWT

	// Resource errors
	CC_NOT_FOUND   ErrorCode = "CC_NOT_FOUND"   // Resource not found
	CC_CONFLICT    ErrorCode = "CC_CONFLICT"    // Resource conflict
	CC_NO_DOCUMENT ErrorCode = "CC_NO_DOCUMENT" // Workspace has no channel loaded

	// Upstream engine errors
	CC_UPSTREAM ErrorCode = "CC_UPSTREAM" // Engine API call failed

	// Server errors
	CC_INTERNAL        ErrorCode = "CC_INTERNAL"        // Internal server error
	CC_UNAVAILABLE     ErrorCode = "CC_UNAVAILABLE"     // Service unavailable
	CC_NOT_IMPLEMENTED ErrorCode = "CC_NOT_IMPLEMENTED" // Not implemented
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case CC_VALIDATION, CC_SCHEMA_REJECT, CC_BAD_REQUEST, CC_CURSOR_INVALID, CC_UNKNOWN_ACTION:
		return http.StatusBadRequest
	case CC_AUTHZ:
		return http.StatusForbidden
	case CC_AUTHN, CC_JWT_INVALID, CC_JWT_EXPIRED, CC_JWT_MALFORMED:
		return http.StatusUnauthorized
	case CC_NOT_FOUND:
		return http.StatusNotFound
	case CC_CONFLICT, CC_NO_DOCUMENT:
		return http.StatusConflict
	case CC_UPSTREAM:
		return http.StatusBadGateway
	case CC_UNAVAILABLE:
		return http.StatusServiceUnavailable
	case CC_NOT_IMPLEMENTED:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
