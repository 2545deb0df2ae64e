package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated indicates a missing, expired or rejected bearer token.
	ErrUnauthenticated = errors.New("usuário não autenticado")

	// ErrUnavailable indicates the backend could not be reached or the circuit breaker is open.
	ErrUnavailable = errors.New("serviço de recomendação indisponível")

	// ErrSubjectRequired is returned when recommendations are requested without a subject.
	ErrSubjectRequired = errors.New("disciplina não selecionada")
)

// APIError is a non-2xx answer from the backend.
// Detail carries the FastAPI "detail" message or an operation-specific fallback.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
}

// Unwrap exposes ErrUnauthenticated for 401 and 403 answers.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthenticated
	}
	return nil
}

// TransportError is a failure to talk to the backend at all.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is makes every TransportError match ErrUnavailable.
func (e *TransportError) Is(target error) bool {
	return target == ErrUnavailable
}

// ContractError is a 2xx answer whose body does not match the expected payload.
type ContractError struct {
	Op    string
	Cause error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: unexpected response: %v", e.Op, e.Cause)
}

func (e *ContractError) Unwrap() error {
	return e.Cause
}

// User-facing messages.
const (
	msgUnavailable     = "Serviço de recomendação indisponível. Tente novamente em instantes."
	msgInvalidResponse = "Resposta inválida do servidor. Tente novamente em instantes."
	msgGeneric         = "Ocorreu um erro. Tente novamente."
	msgSubjectRequired = "Selecione uma matéria antes de solicitar recomendações."
)

// UserMessage turns any client error into the message shown to the student.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}

	var contractErr *ContractError
	switch {
	case errors.Is(err, ErrSubjectRequired):
		return msgSubjectRequired
	case errors.Is(err, ErrUnavailable):
		return msgUnavailable
	case errors.As(err, &contractErr):
		return msgInvalidResponse
	default:
		return msgGeneric
	}
}
