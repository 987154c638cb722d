package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/JonMunkholm/secretaria/internal/auth"
)

// Match selects how RequirePermissions combines its permission list.
type Match int

const (
	Any Match = iota
	All
)

// LoginPath and HomePath are where the guards send rejected requests.
const (
	LoginPath = "/login"
	HomePath  = "/menu"
)

// RequireLogin redirects anonymous requests to the login page, carrying the
// page they wanted as returnUrl.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.FromContext(r.Context()).IsLoggedIn() {
			next.ServeHTTP(w, r)
			return
		}
		Redirect(w, r, LoginURL(returnTarget(r)))
	})
}

// RequirePermissions lets a request through only when the user holds any
// (or all) of perms. Others are sent to the menu.
func RequirePermissions(match Match, perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.FromContext(r.Context())
			ok := p.HasAnyPermission(perms...)
			if match == All {
				ok = p.HasAllPermissions(perms...)
			}
			if !ok {
				slog.Warn("auth: missing permission",
					"path", r.URL.Path,
					"method", r.Method,
					"session_id", p.SessionID(),
					"required", perms,
				)
				Redirect(w, r, HomePath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LoginURL is the login page with a return target.
func LoginURL(returnTo string) string {
	if returnTo == "" || returnTo == HomePath {
		return LoginPath
	}
	return LoginPath + "?returnUrl=" + url.QueryEscape(returnTo)
}

// Redirect sends the browser to target. HTMX requests get HX-Redirect so the
// whole page navigates instead of swapping a fragment.
func Redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// returnTarget is the page the user was on. For HTMX requests that is the
// page hosting the fragment, not the fragment URL.
func returnTarget(r *http.Request) string {
	if cur := r.Header.Get("HX-Current-URL"); cur != "" {
		if u, err := url.Parse(cur); err == nil {
			return SafeReturn(u.RequestURI(), "")
		}
	}
	if r.Method != http.MethodGet {
		return ""
	}
	return SafeReturn(r.URL.RequestURI(), "")
}

// SafeReturn accepts only local absolute paths, falling back otherwise.
func SafeReturn(target, fallback string) string {
	if target == "" || target[0] != '/' || len(target) > 1 && (target[1] == '/' || target[1] == '\\') {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}
