// Package session holds the logged-in student's state for the CLI and the web client.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrNoSession is returned when no (unexpired) session exists.
var ErrNoSession = errors.New("nenhuma sessão ativa")

// DefaultTTL is how long a web session stays valid.
const DefaultTTL = 24 * time.Hour

const (
	defaultInitials    = "AL"
	defaultDisplayName = "Aluno"
)

// Session is an authenticated student.
type Session struct {
	Token      string    `json:"access_token"`
	UserName   string    `json:"nome,omitempty"`
	Matricula  string    `json:"matricula,omitempty"`
	HasProfile bool      `json:"has_profile"`
	CreatedAt  time.Time `json:"created_at"`
}

// Authenticated reports whether the session carries a bearer token.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// DisplayName returns the student's name, or "Aluno" when unknown.
func (s *Session) DisplayName() string {
	if s == nil {
		return defaultDisplayName
	}
	if name := strings.TrimSpace(s.UserName); name != "" {
		return name
	}
	return defaultDisplayName
}

// Initials returns up to two uppercase initials of the user name, or "AL" when unknown.
func (s *Session) Initials() string {
	if s == nil {
		return defaultInitials
	}
	var b strings.Builder
	count := 0
	for _, word := range strings.Fields(s.UserName) {
		r, _ := utf8.DecodeRuneInString(word)
		if !unicode.IsLetter(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
		count++
		if count == 2 {
			break
		}
	}
	if count == 0 {
		return defaultInitials
	}
	return b.String()
}

// Expired reports whether the session is older than ttl. A zero ttl never expires.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.CreatedAt) > ttl
}

// NewID returns a fresh random session ID. Stores key sessions by its string form.
func NewID() uuid.UUID {
	return uuid.New()
}

// Store keeps web sessions by ID.
type Store interface {
	Put(ctx context.Context, id string, s Session) error
	// Get returns ErrNoSession for unknown or expired IDs.
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a MemoryStore whose sessions expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, id string, s Session) error {
	if id == "" {
		return errors.New("session id is required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoSession
	}
	if s.Expired(m.now(), m.ttl) {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		return nil, ErrNoSession
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpired removes every session older than the store TTL.
func (m *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.Expired(now, m.ttl) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
