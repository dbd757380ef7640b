package api

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeAuthentication ErrorType = "authentication_error"
	ErrorTypeTransport      ErrorType = "transport_error"
	ErrorTypeProtocol       ErrorType = "protocol_error"
	ErrorTypeEmptyRequest   ErrorType = "empty_request"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypePermission     ErrorType = "permission_error"
	ErrorTypeRateLimit      ErrorType = "rate_limit_error"
	ErrorTypeCancelled      ErrorType = "cancelled"
	ErrorTypeServerError    ErrorType = "server_error"
)

// APIError represents a structured error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	// Status is the upstream HTTP status for transport errors (0 if none).
	Status int `json:"status,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatus returns the status code the HTTP surface reports for this error.
func (e *APIError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeInvalidRequest, ErrorTypeEmptyRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeTransport, ErrorTypeProtocol:
		return http.StatusBadGateway
	case ErrorTypeCancelled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewAuthenticationError creates an APIError for a missing or unusable API key.
func NewAuthenticationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAuthentication,
		Message: message,
	}
}

// NewTransportError creates an APIError for a failed upstream call. The
// upstream status is embedded in the message when known.
func NewTransportError(status int, message string) *APIError {
	if status > 0 {
		message = fmt.Sprintf("upstream returned HTTP %d: %s", status, message)
	}
	return &APIError{
		Type:    ErrorTypeTransport,
		Message: message,
		Status:  status,
	}
}

// NewProtocolError creates an APIError for an error reported inside the
// response stream or a payload that cannot be decoded.
func NewProtocolError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeProtocol,
		Message: message,
	}
}

// NewEmptyRequestError creates an APIError for a request that has no
// translatable content.
func NewEmptyRequestError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeEmptyRequest,
		Message: message,
	}
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewPermissionError creates an APIError for an authenticated caller that
// lacks the scope an operation requires.
func NewPermissionError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypePermission,
		Message: message,
	}
}

// NewRateLimitError creates an APIError for a caller over its request budget.
func NewRateLimitError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeRateLimit,
		Code:    "rate_limited",
		Message: message,
	}
}

// NewCancelledError creates an APIError for a request aborted by its caller.
func NewCancelledError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeCancelled,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}
