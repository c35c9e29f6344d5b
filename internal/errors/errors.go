package errors

import (
	"fmt"
	"net/http"
)

// Error codes carried in the error_code extension of a problem response.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
)

// APIError is an error raised by the HTTP layer itself, as opposed to the
// service errors HandleError maps by identity.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError names one rejected field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload of a multi-field rejection.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message, Details: details}
}

// InvalidRequestWithError wraps a body or query decoding failure.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation rejects a single query parameter, e.g. a non-numeric top.
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidation, "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// NewValidationErrors rejects several fields at once.
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidation, "Request validation failed",
		ValidationErrors{Errors: errs})
}

// NotFoundError reports a missing resource such as an entity or region.
func NotFoundError(resource string) *APIError {
	return NewWithDetails(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}

// problemType maps an error code to its problem type URI.
func problemType(code string) string {
	switch code {
	case CodeInvalidRequest, CodeValidation:
		return TypeValidation
	case CodeNotFound:
		return TypeNotFound
	case CodeConflict:
		return TypeConflict
	case CodeRateLimited:
		return TypeRateLimit
	case CodeUnavailable:
		return TypeServiceDown
	}
	return TypeInternal
}
