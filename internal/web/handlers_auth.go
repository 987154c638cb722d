package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/logging"
	"github.com/JonMunkholm/secretaria/internal/notify"
	mw "github.com/JonMunkholm/secretaria/internal/web/middleware"
	"github.com/JonMunkholm/secretaria/internal/web/templates"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	ret := mw.SafeReturn(r.URL.Query().Get("returnUrl"), mw.HomePath)
	if auth.FromContext(r.Context()).IsLoggedIn() {
		http.Redirect(w, r, ret, http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, templates.LoginPage(templates.Page{Title: "Iniciar sesión"}, templates.LoginForm{ReturnURL: ret}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := templates.LoginForm{
		Email:     strings.TrimSpace(r.FormValue("email")),
		ReturnURL: mw.SafeReturn(r.FormValue("returnUrl"), mw.HomePath),
	}
	password := r.FormValue("password")
	if form.Email == "" || password == "" {
		form.Error = "Ingrese su correo y contraseña"
		s.render(w, r, http.StatusBadRequest, templates.LoginPage(templates.Page{Title: "Iniciar sesión"}, form))
		return
	}

	sess, err := s.auth.Login(r.Context(), form.Email, password)
	if err != nil {
		msg := api.MapError(err)
		logging.FromContext(r.Context()).Warn("login failed", "email", form.Email, "code", msg.Code, "error", err)
		form.Error = msg.Message
		s.render(w, r, statusFor(err), templates.LoginPage(templates.Page{Title: "Iniciar sesión"}, form))
		return
	}

	s.setCookie(w, sess.ID)
	s.notifier.Success(sess.ID, "Bienvenido, "+sess.User.Nombre)
	http.Redirect(w, r, form.ReturnURL, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if err := s.auth.Logout(r.Context(), p.SessionID()); err != nil {
		logging.FromContext(r.Context()).Warn("logout failed", "error", err)
	}
	s.clearCookie(w)
	mw.Redirect(w, r, mw.LoginPath)
}

// handleMenu revalidates the session with the backend, then lists the views
// the user may open.
func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.FromContext(ctx)
	if _, err := s.auth.Validate(ctx, p.SessionID()); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	// The user may have changed; rebind the principal to the stored session.
	if sess, err := s.auth.Session(ctx, p.SessionID()); err == nil {
		r = r.WithContext(auth.NewContext(ctx, s.auth.Principal(sess)))
	}
	s.render(w, r, http.StatusOK, templates.MenuPage(s.page(r, "Menú principal", "", nil)))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.auth.Sessions(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.render(w, r, http.StatusOK, templates.SessionsPage(s.page(r, "Sesiones", "", []string{"Sesiones"}), list))
}

func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.LogoutAll(r.Context(), sessionID(r)); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.notifier.Success(sessionID(r), "Se cerraron todas las sesiones")
	http.Redirect(w, r, "/sesiones", http.StatusSeeOther)
}

// handleConfirm answers a pending confirmation and returns to the page that
// asked it.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	ret := mw.SafeReturn(r.FormValue("return"), mw.HomePath)
	confirmed := r.FormValue("confirmed") == "true"

	err := s.notifier.Resolve(r.Context(), chi.URLParam(r, "id"), confirmed)
	if errors.Is(err, notify.ErrUnknownConfirmation) {
		s.notifier.Warning(sessionID(r), api.MapError(err).Message)
	} else if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	mw.Redirect(w, r, ret)
}
