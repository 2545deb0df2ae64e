package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sra-rio/sra-web/internal/profile"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&Options{BaseURL: srv.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(&Options{BaseURL: "localhost"})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"matricula":"2021001","senha":"segredo"}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"bearer","nome":"Ana Souza","has_profile":false}`))
	})

	token, err := c.Login(context.Background(), types.LoginRequest{Matricula: "2021001", Senha: "segredo"})
	require.NoError(t, err)
	assert.Equal(t, "abc", token.AccessToken)
	assert.Equal(t, "Ana Souza", token.Nome)
	assert.True(t, token.NeedsProfile())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Credenciais incorretas"}`))
	})

	_, err := c.Login(context.Background(), types.LoginRequest{Matricula: "x", Senha: "y"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Matrícula ou senha inválida.", UserMessage(err))
}

func TestLogin_MalformedToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	})

	_, err := c.Login(context.Background(), types.LoginRequest{Matricula: "x", Senha: "y"})
	var contractErr *ContractError
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, msgInvalidResponse, UserMessage(err))
}

func TestSaveProfile(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/aluno/me/perfil", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	form := profile.Form{Curso: "Direito"}
	require.NoError(t, c.SaveProfile(context.Background(), "tok", form))
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestSaveProfile_ValidationDetailList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","curso"],"msg":"field required"},{"msg":"value is not valid"}]}`))
	})

	err := c.SaveProfile(context.Background(), "tok", profile.Form{})
	require.Error(t, err)
	assert.Equal(t, "field required; value is not valid", UserMessage(err))
	assert.False(t, errors.Is(err, ErrUnauthenticated))
}

func TestMissingTokenSkipsBackend(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	ctx := context.Background()

	_, err := c.Subjects(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "Usuário não autenticado. Faça login para visualizar as matérias.", UserMessage(err))

	_, err = c.Recommendations(ctx, "", 0)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "Sessão expirada. Faça login novamente.", UserMessage(err))

	_, err = c.ProfessorAverages(ctx, "", 1)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	assert.ErrorIs(t, c.SaveProfile(ctx, "", profile.Form{}), ErrUnauthenticated)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSubjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aluno/disciplinas", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id_disciplina":3,"nome":"Banco de Dados"},{"id_disciplina":7,"nome":"Cálculo I"}]`))
	})

	subjects, err := c.Subjects(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "Cálculo I", subjects.Label(7))
}

func TestSubjects_EmptyAndExpired(t *testing.T) {
	t.Run("empty list", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[]`))
		})
		subjects, err := c.Subjects(context.Background(), "tok")
		require.NoError(t, err)
		assert.NotNil(t, subjects)
		assert.Empty(t, subjects)
	})

	t.Run("expired token", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Token expirado"}`))
		})
		_, err := c.Subjects(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.Equal(t, "Token expirado", UserMessage(err))
	})
}

func TestRecommendations(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[
			{"id_professor":10,"nome":"Carla","estrelas":4.4},
			{"id_professor":"11","nome":"Bruno","similaridade":0.9},
			{"id_professor":12,"nome":"Dora","estrelas":"muitas"}
		]`))
	})

	records, err := c.Recommendations(context.Background(), "tok", 3)
	require.NoError(t, err)
	assert.Equal(t, "disciplina_id=3", gotQuery)
	require.Len(t, records, 3)
	assert.Equal(t, 11, records[1].ProfessorID)

	shown := recommend.Prepare(records, "Especialista em Banco de Dados")
	assert.Equal(t, []int{4, 5, 0}, []int{shown[0].StarCount, shown[1].StarCount, shown[2].StarCount})
}

func TestRecommendations_SubjectRequired(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.Recommendations(context.Background(), "tok", 0)
	assert.ErrorIs(t, err, ErrSubjectRequired)
	assert.Equal(t, "Selecione uma matéria antes de solicitar recomendações.", UserMessage(err))
	assert.Equal(t, int32(0), calls.Load())
}

func TestRecommendations_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	records, err := c.Recommendations(context.Background(), "tok", 5)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRecommendations_NotAnArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})

	_, err := c.Recommendations(context.Background(), "tok", 1)
	var contractErr *ContractError
	assert.ErrorAs(t, err, &contractErr)
}

func TestProfessorAverages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prof/media/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"professor_id":42,"medias":{"slide":5.5,"provas":3}}`))
	})

	avg, err := c.ProfessorAverages(context.Background(), "tok", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, avg.ProfessorID)
	assert.InDelta(t, 5.5, avg.Medias["slide"], 1e-9)
}

func TestProfessorAverages_NotFoundFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.ProfessorAverages(context.Background(), "tok", 99)
	assert.Equal(t, "Professor não encontrado ou sem avaliações.", UserMessage(err))
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := New(&Options{BaseURL: srv.URL, BreakerFailures: 2, BreakerTimeout: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	for range 2 {
		_, err := c.Subjects(ctx, "tok")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	}

	_, err = c.Subjects(ctx, "tok")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, msgUnavailable, UserMessage(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientErrorsDoNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(&Options{BaseURL: srv.URL, BreakerFailures: 2})
	require.NoError(t, err)

	for range 4 {
		_, err := c.ProfessorAverages(context.Background(), "tok", 1)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(4), calls.Load())
}

func TestCanceledCallsDoNotOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `[{"id_disciplina":1,"nome":"Cálculo I"}]`)
	}))
	defer srv.Close()

	c, err := New(&Options{BaseURL: srv.URL, BreakerFailures: 2, BreakerTimeout: time.Minute})
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	for range 5 {
		_, err := c.Subjects(canceled, "tok")
		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	subjects, err := c.Subjects(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Cálculo I", subjects.Label(1))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(&Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Subjects(context.Background(), "tok")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestParseDetail(t *testing.T) {
	tests := map[string]string{
		`{"detail":"  Perfil incompleto "}`: "Perfil incompleto",
		`{"detail":[{"msg":"a"},{"msg":""}]}`: "a",
		`{"detail":42}`:                       "",
		`{}`:                                  "",
		`not json`:                            "",
	}
	for body, want := range tests {
		assert.Equal(t, want, parseDetail([]byte(body)), "body %s", body)
	}
}
