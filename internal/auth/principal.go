package auth

import "context"

// Authorizer answers who the current user is and what they may do.
type Authorizer interface {
	IsLoggedIn() bool
	AccessToken() string
	CurrentUser() *User
	HasPermission(perm string) bool
	HasAnyPermission(perms ...string) bool
	HasRole(role string) bool
	// Subscribe registers fn for changes to the current user and returns a
	// function that removes it.
	Subscribe(fn func(*User)) func()
}

// Principal is the Authorizer for one session.
type Principal struct {
	m *Manager
	s *Session
}

var _ Authorizer = (*Principal)(nil)

// Principal binds s to the manager. A nil s yields an anonymous principal.
func (m *Manager) Principal(s *Session) *Principal {
	return &Principal{m: m, s: s}
}

// Anonymous returns a principal with no session.
func Anonymous() *Principal {
	return &Principal{}
}

// SessionID returns the id of the bound session, or "".
func (p *Principal) SessionID() string {
	if p.s == nil {
		return ""
	}
	return p.s.ID
}

func (p *Principal) IsLoggedIn() bool {
	return p.s != nil && p.s.AccessToken != ""
}

func (p *Principal) AccessToken() string {
	if p.s == nil {
		return ""
	}
	return p.s.AccessToken
}

func (p *Principal) CurrentUser() *User {
	if p.s == nil {
		return nil
	}
	return p.s.User
}

func (p *Principal) HasPermission(perm string) bool {
	return p.CurrentUser().HasPermission(perm)
}

func (p *Principal) HasAnyPermission(perms ...string) bool {
	return p.CurrentUser().HasAnyPermission(perms...)
}

func (p *Principal) HasAllPermissions(perms ...string) bool {
	return p.CurrentUser().HasAllPermissions(perms...)
}

func (p *Principal) HasRole(role string) bool {
	return p.CurrentUser().HasRole(role)
}

func (p *Principal) HasAnyRole(roles ...string) bool {
	return p.CurrentUser().HasAnyRole(roles...)
}

// Subscribe follows user changes of this principal's session. Anonymous
// principals never receive notifications.
func (p *Principal) Subscribe(fn func(*User)) func() {
	if p.m == nil || p.s == nil {
		return func() {}
	}
	id := p.s.ID
	return p.m.Subscribe(func(sessionID string, u *User) {
		if sessionID == id {
			fn(u)
		}
	})
}

type principalKey struct{}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, or an anonymous one.
func FromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey{}).(*Principal); ok && p != nil {
		return p
	}
	return Anonymous()
}
