package core

import (
	"fmt"
)

// Error represents an API error surfaced by the mentor backend or SDK.
type Error struct {
	Type       ErrorType `json:"error"`
	Message    string    `json:"message"`
	Param      string    `json:"param,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request"
	ErrNotFound       ErrorType = "not_found"
	ErrRateLimit      ErrorType = "rate_limit_exceeded"
	ErrAIService      ErrorType = "ai_service_error"
	ErrUnavailable    ErrorType = "service_unavailable"
	ErrInternal       ErrorType = "internal_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string, retryAfter int) *Error {
	return &Error{
		Type:       ErrRateLimit,
		Message:    message,
		RetryAfter: &retryAfter,
	}
}

// NewAIServiceError wraps a failure from the AI provider.
func NewAIServiceError(provider string, underlying error) *Error {
	return &Error{
		Type:    ErrAIService,
		Message: fmt.Sprintf("%s: %v", provider, underlying),
	}
}

// NewUnavailableError creates a service unavailable error.
func NewUnavailableError(message string) *Error {
	return &Error{
		Type:    ErrUnavailable,
		Message: message,
	}
}

// NewInternalError creates a generic internal error.
func NewInternalError(message string) *Error {
	return &Error{
		Type:    ErrInternal,
		Message: message,
	}
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrUnavailable:
		return true
	default:
		return false
	}
}
