package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/memory"
	"github.com/phrazzld/cardfeed/internal/parking"
	"github.com/phrazzld/cardfeed/internal/service"
	"github.com/phrazzld/cardfeed/internal/service/auth"
	"github.com/phrazzld/cardfeed/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	var validationErrs validator.ValidationErrors

	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrCardClosed),
		errors.Is(err, service.ErrActionNotPermitted),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity),
		errors.Is(err, memory.ErrInvalidKey),
		errors.Is(err, shared.ErrEmptyBody),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest

	// Optional collaborators
	case errors.Is(err, service.ErrFeatureDisabled),
		errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var validationErrs validator.ValidationErrors

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType):
		return "Invalid token"

	case errors.Is(err, store.ErrCardNotFound):
		return "Card not found"
	case errors.Is(err, parking.ErrNotParked):
		return "Card is not parked"
	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, service.ErrCardClosed):
		return "Card is already closed"
	case errors.Is(err, service.ErrActionNotPermitted):
		return "Action not permitted for this card"

	case errors.As(err, &validationErrs):
		return SanitizeValidationError(err)
	case errors.Is(err, domain.ErrInvalidKind):
		return "Invalid card kind"
	case errors.Is(err, domain.ErrInvalidContent):
		return "Invalid card content"
	case errors.Is(err, domain.ErrInvalidAltitude):
		return "Invalid altitude"
	case errors.Is(err, domain.ErrInvalidAction):
		return "Unknown action"
	case errors.Is(err, domain.ErrInvalidWakeCondition):
		return "Invalid wake condition"
	case errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, shared.ErrEmptyBody):
		return "Invalid request format"
	case errors.Is(err, domain.ErrValidation):
		var fieldErr *domain.ValidationError
		if errors.As(err, &fieldErr) && fieldErr.Field != "" {
			return fmt.Sprintf("Invalid %s: %s", fieldErr.Field, fieldErr.Message)
		}
		return "Validation error"

	case errors.Is(err, service.ErrFeatureDisabled):
		return "Feature not configured"
	case errors.Is(err, store.ErrUnavailable):
		return "Service temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError removes sensitive details from validator errors
// and returns a user-friendly message naming the first failing field.
func SanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		fe := validationErrs[0]
		return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "gt", "gte":
		return "too small"
	case "lt", "lte":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid":
		return "invalid identifier"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err and logs the
// redacted detail. fallback replaces the generic message for 500s.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
