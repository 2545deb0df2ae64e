// Package apiclient talks to the SRA recommendation backend over HTTP.
// Every call goes through a shared circuit breaker and is recorded in metrics.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/sra-rio/sra-web/internal/logging"
	"github.com/sra-rio/sra-web/internal/metrics"
	"github.com/sra-rio/sra-web/internal/profile"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/schemas"
	"github.com/sra-rio/sra-web/internal/types"
	schemafiles "github.com/sra-rio/sra-web/schemas"
)

// DefaultBaseURL is the backend address used when none is configured.
const DefaultBaseURL = "http://localhost:8000"

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 15 * time.Second

// Breaker defaults.
const (
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
)

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 1 << 20

// Operation names, used for logging, metrics and errors.
const (
	OpLogin             = "login"
	OpSaveProfile       = "save_profile"
	OpSubjects          = "subjects"
	OpRecommendations   = "recommendations"
	OpProfessorAverages = "professor_averages"
)

// Options configures the client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	// BreakerFailures is the number of consecutive transport or 5xx failures that opens the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before a trial request.
	BreakerTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		BaseURL:         DefaultBaseURL,
		Timeout:         DefaultTimeout,
		BreakerFailures: DefaultBreakerFailures,
		BreakerTimeout:  DefaultBreakerTimeout,
	}
}

// Client is a backend client. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*response]
}

type response struct {
	status int
	body   []byte
}

// errServerStatus marks a 5xx answer as a breaker failure.
var errServerStatus = errors.New("backend server error")

// New creates a client. A nil opts uses DefaultOptions.
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = defaults.BreakerFailures
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = defaults.BreakerTimeout
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	const cbName = "sra-backend"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	failures := opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= failures
			if trip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("opening backend circuit breaker")
			}
			return trip
		},
		// Cancelled calls count as neither failure nor outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Client{baseURL: base, http: httpClient, cb: cb}, nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, req types.LoginRequest) (*types.Token, error) {
	resp, err := c.do(ctx, OpLogin, http.MethodPost, "/login", nil, "", req)
	if err != nil {
		return nil, err
	}
	if resp.status >= 400 && resp.status < 500 {
		// The backend detail is not shown for login failures.
		return nil, &APIError{Op: OpLogin, Status: resp.status, Detail: "Matrícula ou senha inválida."}
	}
	if err := checkStatus(OpLogin, resp, "Não foi possível entrar. Tente novamente."); err != nil {
		return nil, err
	}

	var token types.Token
	if err := decode(OpLogin, schemafiles.Token, resp.body, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// SaveProfile submits the student's preference profile.
func (c *Client) SaveProfile(ctx context.Context, token string, form profile.Form) error {
	if token == "" {
		return unauthenticated(OpSaveProfile, "Usuário não autenticado. Faça login novamente.")
	}
	resp, err := c.do(ctx, OpSaveProfile, http.MethodPost, "/aluno/me/perfil", nil, token, form)
	if err != nil {
		return err
	}
	return checkStatus(OpSaveProfile, resp, "Erro ao salvar perfil.")
}

// Subjects lists the subjects available to the student.
func (c *Client) Subjects(ctx context.Context, token string) (types.Subjects, error) {
	if token == "" {
		return nil, unauthenticated(OpSubjects, "Usuário não autenticado. Faça login para visualizar as matérias.")
	}
	resp, err := c.do(ctx, OpSubjects, http.MethodGet, "/aluno/disciplinas", nil, token, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(OpSubjects, resp, "Não foi possível carregar as disciplinas."); err != nil {
		return nil, err
	}

	var subjects types.Subjects
	if err := decode(OpSubjects, schemafiles.Subjects, resp.body, &subjects); err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = types.Subjects{}
	}
	return subjects, nil
}

// Recommendations fetches the raw recommendation records for one subject.
func (c *Client) Recommendations(ctx context.Context, token string, subjectID int) ([]recommend.Record, error) {
	if token == "" {
		return nil, unauthenticated(OpRecommendations, "Sessão expirada. Faça login novamente.")
	}
	if subjectID <= 0 {
		return nil, ErrSubjectRequired
	}
	query := url.Values{"disciplina_id": {strconv.Itoa(subjectID)}}
	resp, err := c.do(ctx, OpRecommendations, http.MethodGet, "/aluno/recomendacoes", query, token, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(OpRecommendations, resp, "Não conseguimos gerar as recomendações. Tente novamente em instantes."); err != nil {
		return nil, err
	}

	var records []recommend.Record
	if err := decode(OpRecommendations, schemafiles.Recommendations, resp.body, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ProfessorAverages fetches the averaged evaluations of one professor.
func (c *Client) ProfessorAverages(ctx context.Context, token string, professorID int) (*types.ProfessorAverages, error) {
	if token == "" {
		return nil, unauthenticated(OpProfessorAverages, "Usuário não autenticado. Faça login novamente.")
	}
	path := "/prof/media/" + strconv.Itoa(professorID)
	resp, err := c.do(ctx, OpProfessorAverages, http.MethodGet, path, nil, token, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(OpProfessorAverages, resp, "Professor não encontrado ou sem avaliações."); err != nil {
		return nil, err
	}

	var averages types.ProfessorAverages
	if err := decode(OpProfessorAverages, schemafiles.ProfessorAverages, resp.body, &averages); err != nil {
		return nil, err
	}
	return &averages, nil
}

// do executes one request through the breaker. It only fails for transport
// problems and breaker rejections; HTTP error statuses are returned in the response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, token string, body any) (*response, error) {
	start := time.Now()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		payload = bytes.NewReader(data)
	}

	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.cb.Execute(func() (*response, error) {
		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = httpResp.Body.Close() }()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		r := &response{status: httpResp.StatusCode, body: data}
		if r.status >= 500 {
			return r, errServerStatus
		}
		return r, nil
	})

	elapsed := time.Since(start)
	outcome := outcomeOf(resp, err)
	metrics.RecordBackendCall(op, outcome, elapsed)

	event := logging.Debug()
	if outcome != "success" {
		event = logging.Warn()
	}
	event.Str("op", op).Str("method", method).Str("path", path).Str("outcome", outcome).Dur("duration", elapsed)
	if resp != nil {
		event = event.Int("status", resp.status)
	}
	event.Err(err).Msg("backend call")

	switch {
	case errors.Is(err, errServerStatus):
		return resp, nil
	case errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%s: %w", op, context.Canceled)
	case err != nil:
		return nil, &TransportError{Op: op, Cause: err}
	}
	return resp, nil
}

func outcomeOf(resp *response, err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, errServerStatus):
		return "server_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case err != nil:
		return "transport_error"
	case resp.status >= 400:
		return "client_error"
	default:
		return "success"
	}
}

// checkStatus converts a non-2xx response into an APIError using the
// backend's detail message, or fallback when there is none.
func checkStatus(op string, resp *response, fallback string) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	detail := parseDetail(resp.body)
	if detail == "" {
		detail = fallback
	}
	return &APIError{Op: op, Status: resp.status, Detail: detail}
}

// parseDetail extracts the FastAPI "detail" field, which is either a string
// or a list of validation errors with a "msg" each.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func decode(op, schemaName string, body []byte, v any) error {
	if err := schemas.ValidateDocument(schemaName, body); err != nil {
		return &ContractError{Op: op, Cause: err}
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &ContractError{Op: op, Cause: err}
	}
	return nil
}

func unauthenticated(op, detail string) error {
	return &APIError{Op: op, Status: http.StatusUnauthorized, Detail: detail}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
