package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/logging"
	"github.com/JonMunkholm/secretaria/internal/notify"
	"github.com/JonMunkholm/secretaria/internal/views"
	"github.com/JonMunkholm/secretaria/internal/web/templates"
)

// loadSession resolves the session cookie into a principal and the
// notification target for the rest of the request.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.cfg.Session.CookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		sess, err := s.auth.Session(ctx, c.Value)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionNotFound) {
				logging.FromContext(ctx).Warn("failed to load session", "error", err)
			}
			s.clearCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		ctx = auth.NewContext(ctx, s.auth.Principal(sess))
		ctx = notify.WithSession(ctx, sess.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) setCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.cfg.Session.IdleTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// call runs fn with backend services bound to the request's token. A
// rejected token is refreshed once and fn retried with the new one.
func (s *Server) call(ctx context.Context, fn func(*api.Services) error) error {
	p := auth.FromContext(ctx)
	err := fn(api.NewServices(s.client.WithToken(p.AccessToken())))
	if !api.IsUnauthorized(err) || p.SessionID() == "" {
		return err
	}
	fresh, rerr := s.auth.Refresh(ctx, p.SessionID())
	if rerr != nil {
		logging.FromContext(ctx).Warn("token refresh after 401 failed", "error", rerr)
		return err
	}
	return fn(api.NewServices(s.client.WithToken(fresh.AccessToken)))
}

// outcome lets engine listeners, which run inside a handler, ask that
// handler to navigate elsewhere.
type outcome struct {
	redirect string
}

type outcomeKey struct{}

func withOutcome(ctx context.Context) (context.Context, *outcome) {
	o := &outcome{}
	return context.WithValue(ctx, outcomeKey{}, o), o
}

func redirectTo(ctx context.Context, target string) {
	if o, ok := ctx.Value(outcomeKey{}).(*outcome); ok {
		o.redirect = target
	}
}

// page builds the frame of a full page for the current user.
func (s *Server) page(r *http.Request, title, active string, crumbs []string) templates.Page {
	p := auth.FromContext(r.Context())
	return templates.Page{
		Title:      title,
		Breadcrumb: crumbs,
		User:       p.CurrentUser(),
		Menu:       menuFor(p),
		Active:     active,
		Overlay:    s.overlay(r, r.URL.RequestURI()),
	}
}

// overlay drains the session's notifications and lists its pending
// confirmations.
func (s *Server) overlay(r *http.Request, returnTo string) templates.Overlay {
	sid := notify.SessionFrom(r.Context())
	if sid == "" {
		return templates.Overlay{}
	}
	return templates.Overlay{
		Notifications: s.notifier.Drain(sid),
		Confirmations: s.notifier.Pending(sid),
		Return:        returnTo,
	}
}

func menuFor(p views.Permissions) []templates.MenuGroup {
	var groups []templates.MenuGroup
	for _, v := range views.Allowed(p) {
		if len(groups) == 0 || groups[len(groups)-1].Name != v.Group {
			groups = append(groups, templates.MenuGroup{Name: v.Group})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, templates.MenuItem{
			Key:   v.Key,
			Title: v.Title,
			Icon:  v.Icon,
			Href:  v.RootPath(),
		})
	}
	return groups
}

// render writes an HTML component with status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// sessionID is the session of the request, or "".
func sessionID(r *http.Request) string {
	return notify.SessionFrom(r.Context())
}
