package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sra-rio/sra-web/internal/apiclient"
	"github.com/sra-rio/sra-web/internal/profile"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		apiErr      *apiclient.APIError
		contractErr *apiclient.ContractError
		fieldErr    *profile.FieldError
		validErr    *ErrValidation
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validErr), errors.As(err, &fieldErr), errors.Is(err, apiclient.ErrSubjectRequired):
		return http.StatusBadRequest
	case errors.Is(err, apiclient.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apiclient.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &contractErr):
		return http.StatusBadGateway
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage returns the Portuguese message shown on a page for err.
func userMessage(err error) string {
	var (
		fieldErr *profile.FieldError
		validErr *ErrValidation
	)
	switch {
	case errors.As(err, &fieldErr):
		return fmt.Sprintf("Campo %s: %s.", fieldErr.Label, fieldErr.Message)
	case errors.As(err, &validErr):
		return validErr.Message
	default:
		return apiclient.UserMessage(err)
	}
}
