package domain

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request, such
	// as a latest message whose content is not plain text.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeTemplate indicates a caller-supplied prompt template that
	// references a placeholder the template store does not define.
	ErrorTypeTemplate ErrorType = "template"

	// ErrorTypeAuthentication indicates an authentication failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeRateLimit indicates rate limiting was triggered upstream.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeContextLength indicates the model context length was exceeded.
	ErrorTypeContextLength ErrorType = "context_length"

	// ErrorTypeServer indicates an upstream or internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeContextLengthExceeded ErrorCode = "context_length_exceeded"
	ErrorCodeRateLimitExceeded     ErrorCode = "rate_limit_exceeded"
	ErrorCodeInvalidAPIKey         ErrorCode = "invalid_api_key"
	ErrorCodeUnknownPlaceholder    ErrorCode = "unknown_placeholder"
	ErrorCodeNonTextContent        ErrorCode = "non_text_content"
)

// APIError is the canonical error surfaced by the pipeline and its
// collaborator clients. Remote failures are mapped into it unmodified in
// meaning; nothing is retried or suppressed.
type APIError struct {
	// Type is the category of error.
	Type ErrorType `json:"type"`

	// Code is an optional specific error code.
	Code ErrorCode `json:"code,omitempty"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Param is the parameter that caused the error, if applicable.
	Param string `json:"param,omitempty"`

	// StatusCode is the suggested HTTP status code.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeTemplate, ErrorTypeContextLength:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// NewInputError builds an invalid-request error for malformed caller input.
func NewInputError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    ErrorCodeNonTextContent,
		Message: message,
	}
}

// NewTemplateError builds an error for a prompt override that references an
// unknown placeholder.
func NewTemplateError(placeholder string) *APIError {
	return &APIError{
		Type:    ErrorTypeTemplate,
		Code:    ErrorCodeUnknownPlaceholder,
		Message: fmt.Sprintf("prompt template references unknown placeholder %q", placeholder),
		Param:   placeholder,
	}
}
