// Package auth keeps backend credentials for browser sessions.
//
// The browser only ever holds an opaque session id. Access and refresh
// tokens stay on the server in a [Store], and a [Manager] renews them shortly
// before they expire.
package auth

import "slices"

// User is the authenticated account as reported by the backend.
type User struct {
	ID       int64    `json:"id"`
	Nombre   string   `json:"nombre"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles,omitempty"`
	Permisos []string `json:"permisos,omitempty"`
}

// HasRole reports whether u has role. A nil user has no roles.
func (u *User) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// HasAnyRole reports whether u has at least one of roles.
func (u *User) HasAnyRole(roles ...string) bool {
	return u != nil && slices.ContainsFunc(roles, u.HasRole)
}

// HasAllRoles reports whether u has every one of roles.
func (u *User) HasAllRoles(roles ...string) bool {
	if u == nil || len(u.Roles) == 0 {
		return false
	}
	for _, r := range roles {
		if !u.HasRole(r) {
			return false
		}
	}
	return true
}

// HasPermission reports whether u was granted perm.
func (u *User) HasPermission(perm string) bool {
	return u != nil && slices.Contains(u.Permisos, perm)
}

// HasAnyPermission reports whether u was granted at least one of perms.
func (u *User) HasAnyPermission(perms ...string) bool {
	return u != nil && slices.ContainsFunc(perms, u.HasPermission)
}

// HasAllPermissions reports whether u was granted every one of perms.
func (u *User) HasAllPermissions(perms ...string) bool {
	if u == nil || len(u.Permisos) == 0 {
		return false
	}
	for _, p := range perms {
		if !u.HasPermission(p) {
			return false
		}
	}
	return true
}
