package model

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode represents API error codes
type ErrorCode int

const (
	// Authentication errors (1xxx)
	ErrCodeUnauthorized ErrorCode = 1001
	ErrCodeTokenInvalid ErrorCode = 1003
	ErrCodeLoginFailed  ErrorCode = 1004

	// Authorization errors (2xxx)
	ErrCodeForbidden ErrorCode = 2001

	// Resource errors (3xxx)
	ErrCodeNotFound ErrorCode = 3001
	ErrCodeConflict ErrorCode = 3003

	// Validation errors (4xxx)
	ErrCodeValidation   ErrorCode = 4001
	ErrCodeInvalidInput ErrorCode = 4002
	ErrCodeUnsafeLink   ErrorCode = 4004
	ErrCodeRateLimited  ErrorCode = 4029

	// Internal errors (5xxx)
	ErrCodeInternal ErrorCode = 5001
)

// APIError is the failure form of the response envelope.
// It always renders as {success: false, statusCode, message}.
type APIError struct {
	Success    bool         `json:"success"`
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Code       ErrorCode    `json:"code,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// WriteJSON writes the error envelope as the JSON response
func (e *APIError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

func newAPIError(status int, code ErrorCode, message string) *APIError {
	return &APIError{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Code:       code,
	}
}

// Common error constructors

func NewUnauthorizedError(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return newAPIError(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

func NewForbiddenError(message string) *APIError {
	if message == "" {
		message = "forbidden"
	}
	return newAPIError(http.StatusForbidden, ErrCodeForbidden, message)
}

func NewNotFoundError(resource string) *APIError {
	return newAPIError(http.StatusNotFound, ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// NewValidationError builds a 400 from field errors. The message names the
// first failing field.
func NewValidationError(errors []FieldError) *APIError {
	message := "one or more fields failed validation"
	if len(errors) > 0 {
		message = fmt.Sprintf("%s: %s", errors[0].Field, errors[0].Message)
		if len(errors) > 1 {
			message = fmt.Sprintf("%s (and %d more errors)", message, len(errors)-1)
		}
	}
	e := newAPIError(http.StatusBadRequest, ErrCodeValidation, message)
	e.Errors = errors
	return e
}

func NewUnsafeLinkError(message string) *APIError {
	if message == "" {
		message = "external link failed the safety check"
	}
	return newAPIError(http.StatusBadRequest, ErrCodeUnsafeLink, message)
}

func NewConflictError(message string) *APIError {
	return newAPIError(http.StatusConflict, ErrCodeConflict, message)
}

func NewInternalError(message string) *APIError {
	if message == "" {
		message = "an unexpected error occurred"
	}
	return newAPIError(http.StatusInternalServerError, ErrCodeInternal, message)
}

func NewBadRequestError(message string) *APIError {
	return newAPIError(http.StatusBadRequest, ErrCodeInvalidInput, message)
}

func NewRateLimitError(retryAfter int) *APIError {
	return newAPIError(http.StatusTooManyRequests, ErrCodeRateLimited,
		fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter))
}
