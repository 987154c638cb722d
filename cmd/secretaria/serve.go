package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/secretaria/internal/api"
	"github.com/JonMunkholm/secretaria/internal/auth"
	"github.com/JonMunkholm/secretaria/internal/config"
	"github.com/JonMunkholm/secretaria/internal/logging"
	"github.com/JonMunkholm/secretaria/internal/notify"
	"github.com/JonMunkholm/secretaria/internal/session"
	"github.com/JonMunkholm/secretaria/internal/views"
	"github.com/JonMunkholm/secretaria/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web console",
		Long: `Start the HTTP server.

Environment Variables:
  API_BASE_URL      Backend REST API root (required)
  SERVER_PORT       Listen port (default: 8080)
  DATABASE_URL      PostgreSQL session store; in-memory when empty
  LOG_LEVEL         debug, info, warn, error (default: info)
  LOG_FILE          Also write logs to this rotating file`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	closer := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, logging.File{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	defer closer.Close()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"api", cfg.API.BaseURL,
		"postgres_sessions", cfg.Database.UsesPostgres(),
		"rate_limit_enabled", cfg.Rate.Enabled,
		"views", views.Count(),
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	pruner, err := session.NewPruner(store, cfg.Session.IdleTTL, cfg.Session.PruneSchedule, slog.Default())
	if err != nil {
		return err
	}
	pruner.Start(ctx)

	client, err := api.New(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout))
	if err != nil {
		return fmt.Errorf("api client: %w", err)
	}

	notifier := notify.New(notify.WithConfirmTTL(cfg.Auth.ConfirmTTL))
	manager := auth.NewManager(client, store,
		auth.WithRefreshLead(cfg.Auth.RefreshLead),
		auth.WithIdleTTL(cfg.Session.IdleTTL),
		auth.WithWarning(notifier.Warning),
	)
	defer manager.Close()

	server, err := web.NewServer(web.Deps{
		Config:   cfg,
		Auth:     manager,
		Notifier: notifier,
		Client:   client,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}

// openStore picks the session store: PostgreSQL when a database URL is
// configured, memory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (auth.Store, func(), error) {
	if !cfg.Database.UsesPostgres() {
		slog.Warn("no DATABASE_URL set; sessions are kept in memory")
		return session.NewMemoryStore(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	store := session.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("session store ready", "backend", "postgres")
	return store, pool.Close, nil
}
