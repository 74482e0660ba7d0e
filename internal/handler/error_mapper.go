package handler

import (
	"errors"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
	"github.com/forgo/jobboard/internal/service"
)

// MapServiceError converts a service error to the failure envelope.
// Unrecognized errors become a generic 500 without internal detail.
func MapServiceError(err error) *model.APIError {
	if err == nil {
		return nil
	}

	var verr *service.ValidationError

	switch {
	// ===== Validation Errors → 400 =====
	case errors.As(err, &verr):
		return model.NewValidationError(verr.Fields)
	case errors.Is(err, service.ErrInvalidPageNumber):
		return fieldError("pageNumber", err)
	case errors.Is(err, service.ErrInvalidPageSize):
		return fieldError("pageSize", err)
	case errors.Is(err, service.ErrKeywordTooShort):
		return fieldError("keyword", err)
	case errors.Is(err, service.ErrInvalidJobID):
		return fieldError("id", err)
	case errors.Is(err, service.ErrUnsafeLink):
		return model.NewUnsafeLinkError(err.Error())

	// ===== Authentication Errors → 401 =====
	case errors.Is(err, service.ErrMissingToken),
		errors.Is(err, service.ErrInvalidToken):
		return withCode(model.NewUnauthorizedError("invalid or missing bearer token"), model.ErrCodeTokenInvalid)
	case errors.Is(err, service.ErrInvalidCredentials):
		return withCode(model.NewUnauthorizedError(service.ErrInvalidCredentials.Error()), model.ErrCodeLoginFailed)

	// ===== Authorization Errors → 403 =====
	case errors.Is(err, service.ErrNotJobOwner):
		return model.NewForbiddenError(err.Error())

	// ===== Not Found Errors → 404 =====
	case errors.Is(err, service.ErrJobNotFound):
		return model.NewNotFoundError("job")
	case errors.Is(err, service.ErrUserNotFound):
		return model.NewNotFoundError("user")

	// ===== Conflict Errors → 409 =====
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return model.NewConflictError(err.Error())
	case errors.Is(err, repository.ErrDuplicate):
		return model.NewConflictError("resource already exists")

	// ===== External Errors → 500 =====
	case errors.Is(err, service.ErrLinkCheckUnavailable):
		return model.NewInternalError(service.ErrLinkCheckUnavailable.Error())

	// ===== Default → 500 =====
	default:
		return model.NewInternalError("")
	}
}

func fieldError(field string, err error) *model.APIError {
	return model.NewValidationError([]model.FieldError{{Field: field, Message: err.Error()}})
}

func withCode(e *model.APIError, code model.ErrorCode) *model.APIError {
	e.Code = code
	return e
}
