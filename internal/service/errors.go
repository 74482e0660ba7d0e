package service

import (
	"errors"
	"strings"

	"github.com/forgo/jobboard/internal/model"
)

// Centralized service layer errors.
// All errors returned by service methods are defined here so handlers can
// map them with errors.Is.

// ===== Authentication Errors =====
var (
	ErrMissingToken       = errors.New("missing bearer token")
	ErrInvalidToken       = errors.New("invalid or revoked token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// ===== Job Errors =====
var (
	ErrJobNotFound  = errors.New("job not found")
	ErrNotJobOwner  = errors.New("not the owner of this job")
	ErrInvalidJobID = errors.New("invalid job id")
	ErrUnsafeLink   = errors.New("external link failed the safety check")
	// ErrLinkCheckUnavailable means the safety lookup itself failed; the link
	// is neither accepted nor rejected.
	ErrLinkCheckUnavailable = errors.New("link safety check unavailable")
)

// ===== Validation Errors =====
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidPageNumber = errors.New("pageNumber must be at least 1")
	ErrInvalidPageSize   = errors.New("pageSize must be between 1 and 100")
	ErrKeywordTooShort   = errors.New("keyword must be at least 2 characters")
)

// ValidationError carries per-field problems. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Fields []model.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func newValidationError(fields []model.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

// UnsafeLinkError names why a link was rejected. It matches ErrUnsafeLink.
type UnsafeLinkError struct {
	Reason string
}

func (e *UnsafeLinkError) Error() string {
	if e.Reason == "" {
		return ErrUnsafeLink.Error()
	}
	return ErrUnsafeLink.Error() + ": " + e.Reason
}

func (e *UnsafeLinkError) Is(target error) bool {
	return target == ErrUnsafeLink
}
