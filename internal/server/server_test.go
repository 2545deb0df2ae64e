package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sra-rio/sra-web/internal/apiclient"
	"github.com/sra-rio/sra-web/internal/config"
	"github.com/sra-rio/sra-web/internal/profile"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/server/middleware"
	"github.com/sra-rio/sra-web/internal/server/ratelimit"
	"github.com/sra-rio/sra-web/internal/session"
	"github.com/sra-rio/sra-web/internal/types"
)

// fakeBackend is a scripted Backend that records what it was asked.
type fakeBackend struct {
	mu sync.Mutex

	token      *types.Token
	loginErr   error
	saveErr    error
	subjects   types.Subjects
	subjectErr error
	records    []recommend.Record
	recErr     error

	loginCalls int
	savedForm  *profile.Form
	recCalls   []int
	tokensSeen []string
}

func (f *fakeBackend) Login(_ context.Context, _ types.LoginRequest) (*types.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.token, nil
}

func (f *fakeBackend) SaveProfile(_ context.Context, token string, form profile.Form) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensSeen = append(f.tokensSeen, token)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedForm = &form
	return nil
}

func (f *fakeBackend) Subjects(_ context.Context, token string) (types.Subjects, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensSeen = append(f.tokensSeen, token)
	if f.subjectErr != nil {
		return nil, f.subjectErr
	}
	return f.subjects, nil
}

func (f *fakeBackend) Recommendations(_ context.Context, token string, subjectID int) ([]recommend.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensSeen = append(f.tokensSeen, token)
	f.recCalls = append(f.recCalls, subjectID)
	if f.recErr != nil {
		return nil, f.recErr
	}
	return f.records, nil
}

func boolPtr(b bool) *bool { return &b }

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		token: &types.Token{AccessToken: "backend-token", TokenType: "bearer", Nome: "Ana Souza", HasProfile: boolPtr(true)},
		subjects: types.Subjects{
			{ID: 1, Nome: "Cálculo I"},
			{ID: 7, Nome: "Banco de Dados"},
		},
	}
}

type testEnv struct {
	server  *Server
	backend *fakeBackend
	store   *session.MemoryStore
}

func newTestEnv(t *testing.T, backend Backend, rateCfg *ratelimit.Config) *testEnv {
	t.Helper()
	if rateCfg == nil {
		rateCfg = &ratelimit.Config{Enabled: false}
	}
	store := session.NewMemoryStore(time.Hour)
	s, err := newServer(Config{
		Session:   &config.SessionConfig{Secret: "test-secret", ExpirationHours: 1},
		RateLimit: rateCfg,
	}, backend, store)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)

	env := &testEnv{server: s, store: store}
	if fb, ok := backend.(*fakeBackend); ok {
		env.backend = fb
	}
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// login performs a successful login and returns the session cookie.
func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	w := e.do(t, postForm("/login", url.Values{"matricula": {"2021001"}, "senha": {"segredo"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func parseHTML(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(w.Body.String()))
	require.NoError(t, err)
	return doc
}

func TestMemorySessionsAreSwept(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)
	ctx := context.Background()
	require.NoError(t, env.store.Put(ctx, "abandoned", session.Session{Token: "tok", CreatedAt: time.Now().Add(-2 * time.Hour)}))
	require.NoError(t, env.store.Put(ctx, "active", session.Session{Token: "tok"}))

	sweeper, ok := env.server.sessions.(expiredSweeper)
	require.True(t, ok)
	n, err := sweeper.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, env.store.Len())
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)
	env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sra_web_requests_total")
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/nao-existe", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	doc := parseHTML(t, w)
	assert.Equal(t, "Erro 404 not found", strings.TrimSpace(doc.Find("h1").Text()))
	link := doc.Find(`a[href="/"]`)
	assert.Equal(t, "Voltar a tela Inicial", strings.TrimSpace(link.Text()))
}

func TestHome_Redirects(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	cookie := env.login(t)
	w = env.do(t, httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	assert.Equal(t, "/recomendacoes", w.Header().Get("Location"))
}

func TestLoginPage(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusOK, w.Code)

	doc := parseHTML(t, w)
	assert.Equal(t, "Login | Matrícula", doc.Find(`label[for="matricula"]`).Text())
	assert.Equal(t, "Senha", doc.Find(`label[for="senha"]`).Text())
	assert.Equal(t, "Efetuar Login", doc.Find(`button[type="submit"]`).Text())
	assert.Zero(t, doc.Find(".topbar").Length(), "no header before login")
}

func TestLoginPage_AlreadyLoggedIn(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)
	cookie := env.login(t)

	w := env.do(t, httptest.NewRequest(http.MethodGet, "/login", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/recomendacoes", w.Header().Get("Location"))
}

func TestLogin_RoutesByProfile(t *testing.T) {
	tests := []struct {
		name       string
		hasProfile *bool
		want       string
	}{
		{name: "profile missing", hasProfile: boolPtr(false), want: "/perfil"},
		{name: "profile present", hasProfile: boolPtr(true), want: "/recomendacoes"},
		{name: "not reported", hasProfile: nil, want: "/recomendacoes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.token.HasProfile = tt.hasProfile
			env := newTestEnv(t, backend, nil)

			w := env.do(t, postForm("/login", url.Values{"matricula": {" 2021001 "}, "senha": {"segredo"}}))
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, tt.want, w.Header().Get("Location"))
			assert.Equal(t, 1, env.store.Len())

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, middleware.CookieName, cookies[0].Name)
			assert.True(t, cookies[0].HttpOnly)
			assert.Equal(t, 3600, cookies[0].MaxAge)
		})
	}
}

func TestLogin_MissingCredentials(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)

	w := env.do(t, postForm("/login", url.Values{"matricula": {"2021001"}, "senha": {"   "}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	doc := parseHTML(t, w)
	assert.Equal(t, msgMissingCredentials, doc.Find(".error").Text())
	assert.Zero(t, env.backend.loginCalls)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	backend := newFakeBackend()
	backend.loginErr = &apiclient.APIError{Op: apiclient.OpLogin, Status: http.StatusUnauthorized, Detail: "Matrícula ou senha inválida."}
	env := newTestEnv(t, backend, nil)

	w := env.do(t, postForm("/login", url.Values{"matricula": {"2021001"}, "senha": {"errada"}}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())

	doc := parseHTML(t, w)
	assert.Equal(t, "Matrícula ou senha inválida.", doc.Find(".error").Text())
	value, _ := doc.Find("#matricula").Attr("value")
	assert.Equal(t, "2021001", value)
	assert.Zero(t, env.store.Len())
}

func TestLogin_BackendUnavailable(t *testing.T) {
	backend := newFakeBackend()
	backend.loginErr = &apiclient.TransportError{Op: apiclient.OpLogin, Cause: errors.New("connection refused")}
	env := newTestEnv(t, backend, nil)

	w := env.do(t, postForm("/login", url.Values{"matricula": {"2021001"}, "senha": {"segredo"}}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, apiclient.UserMessage(backend.loginErr), parseHTML(t, w).Find(".error").Text())
}

func TestProtectedPages_RequireSession(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/perfil", nil),
		postForm("/perfil", url.Values{}),
		httptest.NewRequest(http.MethodGet, "/recomendacoes", nil),
	} {
		w := env.do(t, req)
		assert.Equal(t, http.StatusSeeOther, w.Code, "%s %s", req.Method, req.URL.Path)
		assert.Equal(t, "/login", w.Header().Get("Location"))
	}

	forged := &http.Cookie{Name: middleware.CookieName, Value: "not-a-token"}
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/recomendacoes", nil), forged)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), nil)
	cookie := env.login(t)
	require.Equal(t, 1, env.store.Len())

	w := env.do(t, httptest.NewRequest(http.MethodPost, "/logout", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Zero(t, env.store.Len())

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/recomendacoes", nil), cookie)
	assert.Equal(t, "/login", w.Header().Get("Location"), "old cookie no longer works")
}

func TestRateLimit_Login(t *testing.T) {
	env := newTestEnv(t, newFakeBackend(), &ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		EndpointConfigs: ratelimit.DefaultEndpointConfigs(),
	})

	for i := range 5 {
		w := env.do(t, postForm("/login", url.Values{}))
		require.Equal(t, http.StatusBadRequest, w.Code, "attempt %d", i+1)
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	}

	w := env.do(t, postForm("/login", url.Values{}))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "Muitas requisições", strings.TrimSpace(parseHTML(t, w).Find("h1").Text()))

	w = env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
