package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sra-rio/sra-web/internal/session"
)

// SessionStore is a session.Store backed by the web_sessions table.
type SessionStore struct {
	db  *DB
	ttl time.Duration
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore creates a store whose sessions expire after ttl. A zero ttl never expires.
func NewSessionStore(db *DB, ttl time.Duration) *SessionStore {
	return &SessionStore{db: db, ttl: ttl}
}

// Put inserts or replaces a session.
func (s *SessionStore) Put(ctx context.Context, id string, sess session.Session) error {
	sid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}

	_, err = s.db.pool.Exec(ctx,
		`INSERT INTO web_sessions (id, token, user_name, matricula, has_profile, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET token = $2, user_name = $3, matricula = $4,
		   has_profile = $5, created_at = $6`,
		sid, sess.Token, sess.UserName, sess.Matricula, sess.HasProfile, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Get returns session.ErrNoSession for unknown, malformed or expired IDs.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, session.ErrNoSession
	}

	var sess session.Session
	err = s.db.pool.QueryRow(ctx,
		`SELECT token, user_name, matricula, has_profile, created_at
		 FROM web_sessions WHERE id = $1`,
		sid,
	).Scan(&sess.Token, &sess.UserName, &sess.Matricula, &sess.HasProfile, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNoSession
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if sess.Expired(time.Now(), s.ttl) {
		return nil, session.ErrNoSession
	}
	return &sess, nil
}

// Delete removes a session. Deleting an unknown session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	if _, err := s.db.pool.Exec(ctx, `DELETE FROM web_sessions WHERE id = $1`, sid); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions older than the TTL and returns how many were removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	tag, err := s.db.pool.Exec(ctx,
		`DELETE FROM web_sessions WHERE created_at < $1`,
		time.Now().Add(-s.ttl),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
