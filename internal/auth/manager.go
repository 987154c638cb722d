package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/secretaria/internal/api"
)

const (
	// DefaultRefreshLead is how long before expiry a token is renewed.
	DefaultRefreshLead = 5 * time.Minute

	// DefaultIdleTTL is how long an unused session survives.
	DefaultIdleTTL = 8 * time.Hour

	// touchInterval limits how often LastSeenAt is written back.
	touchInterval = time.Minute

	refreshTimeout = 30 * time.Second
)

// MsgExpiring is shown when a scheduled renewal fails.
const MsgExpiring = "Su sesión está por expirar"

// Listener is told when the user behind a session changes. u is nil after
// the session ends.
type Listener func(sessionID string, u *User)

// Manager logs users in against the backend and keeps their tokens fresh.
type Manager struct {
	client *api.Client
	store  Store
	logger *slog.Logger
	lead   time.Duration
	idle   time.Duration
	now    func() time.Time
	warn   func(sessionID, message string)

	group singleflight.Group

	mu        sync.Mutex
	timers    map[string]*time.Timer
	listeners map[int]Listener
	nextID    int
	closed    bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithRefreshLead sets how long before expiry tokens are renewed.
func WithRefreshLead(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.lead = d
		}
	}
}

// WithIdleTTL sets how long a session may go unused. Zero disables the limit.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) { m.idle = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithWarning sets the hook called when a scheduled renewal fails.
func WithWarning(fn func(sessionID, message string)) ManagerOption {
	return func(m *Manager) { m.warn = fn }
}

// NewManager returns a manager that talks to the backend through client.
func NewManager(client *api.Client, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		client:    client,
		store:     store,
		logger:    slog.Default(),
		lead:      DefaultRefreshLead,
		idle:      DefaultIdleTTL,
		now:       time.Now,
		timers:    make(map[string]*time.Timer),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type authResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user"`
	Message      string `json:"message"`
	Error        string `json:"error"`
}

func (r *authResponse) reason(fallback string) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	}
	return fallback
}

// Login exchanges credentials for a new session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	var resp authResponse
	err := m.client.Do(ctx, http.MethodPost, "auth/login",
		map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return nil, fmt.Errorf("%w: %s", ErrLoginFailed, apiErr.Message)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if !resp.Success || resp.AccessToken == "" || resp.User == nil {
		return nil, fmt.Errorf("%w: %s", ErrLoginFailed, resp.reason("respuesta incompleta"))
	}

	now := m.now()
	s := &Session{ID: uuid.NewString(), CreatedAt: now, LastSeenAt: now}
	m.apply(s, &resp, now)
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.schedule(s)
	m.publish(s.ID, s.User)

	m.logger.InfoContext(ctx, "user logged in", "session_id", s.ID, "user_id", s.User.ID)
	return s.Clone(), nil
}

func (m *Manager) apply(s *Session, resp *authResponse, now time.Time) {
	if resp.AccessToken != "" {
		s.AccessToken = resp.AccessToken
	}
	if resp.RefreshToken != "" {
		s.RefreshToken = resp.RefreshToken
	}
	if resp.User != nil {
		s.User = resp.User
	}
	if resp.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	s.UpdatedAt = now
}

// Session returns the live session for id. Idle sessions are ended and
// reported as ErrSessionNotFound.
func (m *Manager) Session(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if m.idle > 0 && now.Sub(s.LastSeenAt) > m.idle {
		if err := m.clear(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "failed to drop idle session", "session_id", id, "error", err)
		}
		return nil, ErrSessionNotFound
	}
	if now.Sub(s.LastSeenAt) > touchInterval {
		s.LastSeenAt = now
		if err := m.store.Save(ctx, s); err != nil {
			m.logger.WarnContext(ctx, "failed to touch session", "session_id", id, "error", err)
		}
	}

	// Timers do not survive a restart; rearm on first use.
	m.mu.Lock()
	_, armed := m.timers[id]
	m.mu.Unlock()
	if !armed {
		m.schedule(s)
	}
	return s, nil
}

// Validate asks the backend whether the session's token is still good. A
// rejected token is renewed when a refresh token is available; any other
// failure ends the session.
func (m *Manager) Validate(ctx context.Context, id string) (*User, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, ErrNoToken
	}

	var resp authResponse
	err = m.client.WithToken(s.AccessToken).Do(ctx, http.MethodGet, "auth/validate", nil, &resp)
	if err != nil {
		if api.IsUnauthorized(err) && s.RefreshToken != "" {
			fresh, err := m.Refresh(ctx, id)
			if err != nil {
				return nil, err
			}
			return fresh.User, nil
		}
		if rejected(err) {
			if cerr := m.clear(ctx, id); cerr != nil {
				m.logger.WarnContext(ctx, "failed to clear session", "session_id", id, "error", cerr)
			}
		}
		return nil, fmt.Errorf("validate session: %w", err)
	}

	if resp.Success && resp.User != nil {
		s.User = resp.User
		s.UpdatedAt = m.now()
		if err := m.store.Save(ctx, s); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
		m.publish(id, s.User)
	}
	return s.User, nil
}

// Refresh renews the session's access token. Concurrent calls for the same
// session share one backend request, which outlives the caller's context.
// The session is ended only when the backend rejects the refresh token.
func (m *Manager) Refresh(ctx context.Context, id string) (*Session, error) {
	ch := m.group.DoChan(id, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return m.refresh(rctx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session).Clone(), nil
	}
}

// rejected reports whether the backend refused the credentials, as opposed
// to failing or being unreachable.
func rejected(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

func (m *Manager) refresh(ctx context.Context, id string) (*Session, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.RefreshToken == "" {
		if cerr := m.clear(ctx, id); cerr != nil {
			m.logger.WarnContext(ctx, "failed to clear session", "session_id", id, "error", cerr)
		}
		return nil, ErrNoRefreshToken
	}

	var resp authResponse
	err = m.client.Do(ctx, http.MethodPost, "auth/refresh",
		map[string]string{"refresh_token": s.RefreshToken}, &resp)
	if err != nil && !rejected(err) {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	if err == nil && (!resp.Success || resp.AccessToken == "") {
		err = errors.New(resp.reason("respuesta sin token"))
	}
	if err != nil {
		if cerr := m.clear(ctx, id); cerr != nil {
			m.logger.WarnContext(ctx, "failed to clear session", "session_id", id, "error", cerr)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}

	m.apply(s, &resp, m.now())
	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.schedule(s)
	if resp.User != nil {
		m.publish(id, s.User)
	}
	m.logger.DebugContext(ctx, "token refreshed", "session_id", id, "expires_at", s.ExpiresAt)
	return s, nil
}

// Logout ends the session. The local session is cleared even when the
// backend call fails.
func (m *Manager) Logout(ctx context.Context, id string) error {
	s, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	m.cancel(id)
	if s.AccessToken != "" {
		err := m.client.WithToken(s.AccessToken).Do(ctx, http.MethodPost, "auth/logout", struct{}{}, nil)
		if err != nil {
			m.logger.WarnContext(ctx, "backend logout failed", "session_id", id, "error", err)
		}
	}
	return m.clear(ctx, id)
}

// LogoutAll closes every session of the user on the backend.
func (m *Manager) LogoutAll(ctx context.Context, id string) error {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	if s.AccessToken == "" {
		return ErrNoToken
	}
	if err := m.client.WithToken(s.AccessToken).Do(ctx, http.MethodPost, "auth/logout-all", struct{}{}, nil); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}
	return nil
}

// Sessions lists the user's active sessions as reported by the backend.
func (m *Manager) Sessions(ctx context.Context, id string) ([]map[string]any, error) {
	s, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, ErrNoToken
	}

	var raw json.RawMessage
	if err := m.client.WithToken(s.AccessToken).Do(ctx, http.MethodGet, "auth/sessions", nil, &raw); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Sessions json.RawMessage `json:"sessions"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode sessions: %w", err)
		}
		raw = bytes.TrimSpace(wrapped.Sessions)
	}
	out := []map[string]any{}
	if len(raw) == 0 || raw[0] != '[' {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return out, nil
}

// Subscribe registers fn for user changes and returns a function that
// removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) publish(sessionID string, u *User) {
	m.mu.Lock()
	fns := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(sessionID, u)
	}
}

// Close stops every pending renewal.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) clear(ctx context.Context, id string) error {
	m.cancel(id)
	err := m.store.Delete(ctx, id)
	m.publish(id, nil)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (m *Manager) schedule(s *Session) {
	m.cancel(s.ID)
	if s.ExpiresAt.IsZero() {
		return
	}
	delay := s.ExpiresAt.Sub(m.now()) - m.lead
	if delay <= 0 {
		return
	}

	id := s.ID
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.timers[id] = time.AfterFunc(delay, func() { m.renew(id) })
}

func (m *Manager) cancel(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
}

// renew runs on the refresh timer.
func (m *Manager) renew(id string) {
	m.mu.Lock()
	delete(m.timers, id)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	s, err := m.store.Load(ctx, id)
	if err != nil {
		return
	}
	if m.idle > 0 && m.now().Sub(s.LastSeenAt) > m.idle {
		if err := m.clear(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "failed to drop idle session", "session_id", id, "error", err)
		}
		return
	}

	if _, err := m.Refresh(ctx, id); err != nil {
		m.logger.WarnContext(ctx, "scheduled refresh failed", "session_id", id, "error", err)
		if m.warn != nil {
			m.warn(id, MsgExpiring)
		}
	}
}
