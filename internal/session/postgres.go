package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/secretaria/internal/auth"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS console_sessions (
	id            TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at    TIMESTAMPTZ,
	user_data     JSONB,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS console_sessions_last_seen_idx ON console_sessions (last_seen_at);
`

const (
	selectSession = `
SELECT id, access_token, refresh_token, expires_at, user_data, created_at, updated_at, last_seen_at
FROM console_sessions WHERE id = $1`

	upsertSession = `
INSERT INTO console_sessions
	(id, access_token, refresh_token, expires_at, user_data, created_at, updated_at, last_seen_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	access_token = EXCLUDED.access_token,
	refresh_token = EXCLUDED.refresh_token,
	expires_at = EXCLUDED.expires_at,
	user_data = EXCLUDED.user_data,
	updated_at = EXCLUDED.updated_at,
	last_seen_at = EXCLUDED.last_seen_at`

	deleteSession = `DELETE FROM console_sessions WHERE id = $1`

	deleteIdle = `DELETE FROM console_sessions WHERE last_seen_at < $1`
)

// PostgresStore keeps sessions in a PostgreSQL table.
type PostgresStore struct {
	db DB
}

var _ auth.Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store over db. Call Migrate before first use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the sessions table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate sessions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*auth.Session, error) {
	var (
		sess      auth.Session
		expiresAt pgtype.Timestamptz
		userData  []byte
	)
	err := s.db.QueryRow(ctx, selectSession, id).Scan(
		&sess.ID, &sess.AccessToken, &sess.RefreshToken, &expiresAt, &userData,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.LastSeenAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if expiresAt.Valid {
		sess.ExpiresAt = expiresAt.Time
	}
	if len(userData) > 0 {
		var u auth.User
		if err := json.Unmarshal(userData, &u); err != nil {
			return nil, fmt.Errorf("decode session user: %w", err)
		}
		sess.User = &u
	}
	return &sess, nil
}

func (s *PostgresStore) Save(ctx context.Context, sess *auth.Session) error {
	var userData []byte
	if sess.User != nil {
		var err error
		if userData, err = json.Marshal(sess.User); err != nil {
			return fmt.Errorf("encode session user: %w", err)
		}
	}
	expiresAt := pgtype.Timestamptz{Time: sess.ExpiresAt, Valid: !sess.ExpiresAt.IsZero()}

	_, err := s.db.Exec(ctx, upsertSession,
		sess.ID, sess.AccessToken, sess.RefreshToken, expiresAt, userData,
		sess.CreatedAt, sess.UpdatedAt, sess.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx, deleteSession, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteIdle(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx, deleteIdle, before)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
