// Package server provides the SRA web client: login, preference profile and recommendations pages.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sra-rio/sra-web/internal/apiclient"
	"github.com/sra-rio/sra-web/internal/config"
	"github.com/sra-rio/sra-web/internal/db"
	"github.com/sra-rio/sra-web/internal/logging"
	"github.com/sra-rio/sra-web/internal/metrics"
	"github.com/sra-rio/sra-web/internal/profile"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/server/middleware"
	"github.com/sra-rio/sra-web/internal/server/ratelimit"
	"github.com/sra-rio/sra-web/internal/session"
	"github.com/sra-rio/sra-web/internal/types"
)

const (
	loginPath           = "/login"
	profilePath         = "/perfil"
	recommendationsPath = "/recomendacoes"

	expiredSweepInterval = 10 * time.Minute
)

// Backend is the subset of the recommendation backend used by the web client.
type Backend interface {
	Login(ctx context.Context, req types.LoginRequest) (*types.Token, error)
	SaveProfile(ctx context.Context, token string, form profile.Form) error
	Subjects(ctx context.Context, token string) (types.Subjects, error)
	Recommendations(ctx context.Context, token string, subjectID int) ([]recommend.Record, error)
}

var _ Backend = (*apiclient.Client)(nil)

// expiredSweeper is implemented by stores that can purge expired sessions.
type expiredSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

var (
	_ expiredSweeper = (*session.MemoryStore)(nil)
	_ expiredSweeper = (*db.SessionStore)(nil)
)

// Server represents the HTTP server
type Server struct {
	httpServer   *http.Server
	db           *db.DB
	backend      Backend
	sessions     session.Store
	tokenService *SessionTokenService
	rateLimiter  *ratelimit.Limiter
	pages        *pages
}

// Config holds server configuration
type Config struct {
	Port           int
	APIURL         string
	RequestTimeout time.Duration
	// DatabaseURL selects the PostgreSQL session store; empty keeps sessions in memory.
	DatabaseURL string
	Session     *config.SessionConfig
	RateLimit   *ratelimit.Config
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Session == nil {
		sessionCfg, err := config.NewSessionConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create session config: %w", err)
		}
		cfg.Session = sessionCfg
	}

	opts := apiclient.DefaultOptions()
	if cfg.APIURL != "" {
		opts.BaseURL = cfg.APIURL
	}
	if cfg.RequestTimeout > 0 {
		opts.Timeout = cfg.RequestTimeout
	}
	client, err := apiclient.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	var (
		database *db.DB
		store    session.Store
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		store = db.NewSessionStore(database, cfg.Session.TTL())
	} else {
		store = session.NewMemoryStore(cfg.Session.TTL())
	}

	s, err := newServer(cfg, client, store)
	if err != nil {
		if database != nil {
			database.Close()
		}
		return nil, err
	}
	s.db = database
	return s, nil
}

// newServer wires routes and middleware around the given backend and session store.
func newServer(cfg Config, backend Backend, store session.Store) (*Server, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("session config is required")
	}
	rateCfg := cfg.RateLimit
	if rateCfg == nil {
		rateCfg = ratelimit.LoadConfig()
	}

	tmpl, err := loadPages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		backend:      backend,
		sessions:     store,
		tokenService: NewSessionTokenService(cfg.Session),
		rateLimiter:  ratelimit.NewLimiter(rateCfg),
		pages:        tmpl,
	}

	requireSession := middleware.RequireSession(s.tokenService.AsTokenValidator(), store, loginPath)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.Handle("GET /perfil", requireSession(http.HandlerFunc(s.handleProfilePage)))
	mux.Handle("POST /perfil", requireSession(http.HandlerFunc(s.handleSaveProfile)))
	mux.Handle("GET /recomendacoes", requireSession(http.HandlerFunc(s.handleRecommendations)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/", s.handleNotFound)

	port := cfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.withRateLimit(s.withLogging(s.withMetrics(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	if sweeper, ok := s.sessions.(expiredSweeper); ok {
		go s.sweepExpired(sweepCtx, sweeper)
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.close()
		return fmt.Errorf("server error: %w", err)
	}
	logging.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.close()
	logging.Info().Msg("server stopped")
	return nil
}

// close releases the rate limiter and the database pool.
func (s *Server) close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Server) sweepExpired(ctx context.Context, sweeper expiredSweeper) {
	ticker := time.NewTicker(expiredSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.DeleteExpired(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("failed to delete expired sessions")
				continue
			}
			if n > 0 {
				logging.Debug().Int64("deleted", n).Msg("expired sessions removed")
			}
		}
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// withMetrics records request counts and latency per matched route.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// The mux sets Pattern on the request it was handed.
		route := r.Pattern
		if route == "" || route == "/" {
			route = "unmatched"
		}
		metrics.RecordRequest(r.Method, route, rec.status, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("error encoding JSON response")
	}
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests page.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	if info.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(info.RetryAfter.Seconds()+0.5)))
	}

	logging.Warn().
		Str("client", s.extractClientID(r)).
		Str("path", r.URL.Path).
		Int("limit", info.Limit).
		Time("reset", info.ResetTime).
		Msg("rate limit exceeded")

	s.render(w, http.StatusTooManyRequests, "error", errorPage{
		Title:   "Muitas requisições",
		Message: "Muitas tentativas em pouco tempo. Aguarde alguns instantes e tente novamente.",
	})
}
