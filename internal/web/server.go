// Package web provides the HTTP server and handlers for the admin console.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/config"
	"github.com/JonMunkholm/secretaria/internal/notify"
	mw "github.com/JonMunkholm/secretaria/internal/web/middleware"
	"github.com/JonMunkholm/secretaria/internal/web/templates"
)

//go:embed static
var staticFiles embed.FS

// Deps are the collaborators the server is built from.
type Deps struct {
	Config   *config.Config
	Auth     *auth.Manager
	Notifier *notify.Notifier
	Client   *api.Client
	Logger   *slog.Logger
}

// Server is the HTTP server for the console.
type Server struct {
	cfg       *config.Config
	auth      *auth.Manager
	notifier  *notify.Notifier
	client    *api.Client
	logger    *slog.Logger
	instances *instances
	router    *chi.Mux
	server    *http.Server
	unsub     func()
}

// NewServer creates a new Server instance.
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.Auth == nil || d.Notifier == nil || d.Client == nil {
		return nil, fmt.Errorf("web: config, auth, notifier and client are required")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &Server{
		cfg:       d.Config,
		auth:      d.Auth,
		notifier:  d.Notifier,
		client:    d.Client,
		logger:    d.Logger,
		instances: newInstances(d.Config.Table.InstanceTTL),
		router:    chi.NewRouter(),
	}

	// Tables and queued messages belong to a user; drop them when the
	// session's user changes or the session ends.
	s.unsub = s.auth.Subscribe(func(sessionID string, u *auth.User) {
		s.instances.dropSession(sessionID)
		if u == nil {
			s.notifier.Forget(sessionID)
		}
	})

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(mw.SecurityHeaders(s.cfg.Security.EnableCSP, templates.HTMXSource))

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Middleware)
	}

	s.router.Use(s.loadSession)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("static files: %w", err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	s.router.Get("/healthz", s.handleHealth)

	// Public pages
	s.router.Get("/", s.handleRoot)
	s.router.Get("/login", s.handleLoginPage)
	login := s.router.With()
	if s.cfg.Rate.Enabled {
		login = s.router.With(mw.NewRateLimiter(s.cfg.Rate.LoginPerMinute).Middleware)
	}
	login.Post("/login", s.handleLogin)

	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireLogin)

		r.Post("/logout", s.handleLogout)
		r.Get("/menu", s.handleMenu)
		r.Get("/sesiones", s.handleSessions)
		r.Post("/sesiones/cerrar", s.handleLogoutAll)
		r.Post("/confirm/{id}", s.handleConfirm)

		// Pages that belong to one view's custom actions.
		r.With(mw.RequirePermissions(mw.Any, "usuarios.roles")).Get("/v/usuarios/{id}/roles", s.handleRolesPage)
		r.With(mw.RequirePermissions(mw.Any, "usuarios.roles")).Post("/v/usuarios/{id}/roles", s.handleSaveRoles)
		r.With(mw.RequirePermissions(mw.Any, "roles.editar")).Get("/v/roles/{id}/permisos", s.handlePermissions)

		r.Route("/v/{view}", func(r chi.Router) {
			r.Use(s.viewCtx)

			r.Get("/", s.handleList)
			r.Get("/table", s.handleTable)
			r.Post("/search", s.handleSearch)
			r.Post("/page-size", s.handlePageSize)
			r.Post("/page/{n}", s.handlePage)
			r.Post("/filter/reset", s.handleResetFilters)
			r.Post("/filter/{column}/menu", s.handleFilterMenu)
			r.Post("/filter/{column}/all", s.handleToggleAll)
			r.Post("/filter/{column}/toggle/{index}", s.handleToggleOption)
			r.Post("/filter/{column}/search", s.handleOptionSearch)
			r.Post("/menu/{id}", s.handleActionMenu)
			r.Post("/close", s.handleCloseMenus)
			r.Post("/action/{action}/{id}", s.handleAction)
			r.Post("/delete/{id}", s.handleDelete)

			r.Get("/{id}", s.handleDetail)
			r.Get("/{id}/editar", s.handleEditPage)
			r.Post("/{id}/editar", s.handleSaveEdit)
		})
	})
	return nil
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsub != nil {
		s.unsub()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","time":%q}`, time.Now().UTC().Format(time.RFC3339))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if auth.FromContext(r.Context()).IsLoggedIn() {
		http.Redirect(w, r, mw.HomePath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, mw.LoginPath, http.StatusSeeOther)
}
