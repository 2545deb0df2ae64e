// Package middleware provides HTTP middleware for session authentication.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/sra-rio/sra-web/internal/session"
)

// CookieName is the name of the signed session cookie.
const CookieName = "sra_session"

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const (
	sessionKey   ContextKey = "session"
	sessionIDKey ContextKey = "sessionID"
)

// TokenValidator validates a signed session cookie value.
// This allows the middleware to work with any signing implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (SessionIDGetter, error)
}

// SessionIDGetter extracts the session ID from validated token claims.
type SessionIDGetter interface {
	GetSessionID() uuid.UUID
}

// ErrNoCookie is returned by Lookup when the request carries no session cookie.
var ErrNoCookie = errors.New("session cookie not present")

// Lookup resolves the request's session cookie to a stored session.
func Lookup(r *http.Request, validator TokenValidator, store session.Store) (*session.Session, string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, "", ErrNoCookie
	}

	claims, err := validator.ValidateToken(cookie.Value)
	if err != nil {
		return nil, "", fmt.Errorf("invalid session cookie: %w", err)
	}

	id := claims.GetSessionID().String()
	s, err := store.Get(r.Context(), id)
	if err != nil {
		return nil, id, err
	}
	return s, id, nil
}

// RequireSession creates middleware that loads the session named by the cookie
// and redirects to loginPath when it is missing, invalid or expired.
func RequireSession(validator TokenValidator, store session.Store, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, id, err := Lookup(r, validator, store)
			if err != nil || !s.Authenticated() {
				ClearCookie(w)
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), id, s)))
		})
	}
}

// WithSession returns a context carrying the session and its ID.
func WithSession(ctx context.Context, id string, s *session.Session) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, id)
	return context.WithValue(ctx, sessionKey, s)
}

// GetSession extracts the authenticated session from the request context.
func GetSession(r *http.Request) (*session.Session, string, error) {
	s, ok := r.Context().Value(sessionKey).(*session.Session)
	if !ok || s == nil {
		return nil, "", fmt.Errorf("session not found in request context")
	}
	id, _ := r.Context().Value(sessionIDKey).(string)
	return s, id, nil
}

// SetCookie writes the signed session cookie.
func SetCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
