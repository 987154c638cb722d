package auth

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoToken is returned when an operation needs an access token.
	ErrNoToken = errors.New("no hay token")

	// ErrNoRefreshToken is returned when a refresh is attempted without one.
	ErrNoRefreshToken = errors.New("no hay refresh token")

	// ErrLoginFailed wraps the backend's reason for rejecting credentials.
	ErrLoginFailed = errors.New("login failed")
)

// Session is the server-side state behind a browser cookie.
type Session struct {
	ID           string
	AccessToken  string
	RefreshToken string
	// ExpiresAt is when the access token expires; zero when the backend did
	// not say.
	ExpiresAt  time.Time
	User       *User
	CreatedAt  time.Time
	UpdatedAt  time.Time
	LastSeenAt time.Time
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.User != nil {
		u := *s.User
		u.Roles = append([]string(nil), s.User.Roles...)
		u.Permisos = append([]string(nil), s.User.Permisos...)
		cp.User = &u
	}
	return &cp
}

// Store persists sessions.
type Store interface {
	// Load returns ErrSessionNotFound when id is unknown.
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes sessions not seen since before and reports how
	// many were removed.
	DeleteIdle(ctx context.Context, before time.Time) (int, error)
}
