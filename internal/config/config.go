// Package config provides centralized configuration management for the console.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	API      APIConfig
	Database DatabaseConfig
	Session  SessionConfig
	Auth     AuthConfig
	Table    TableConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// APIConfig points the console at the REST backend.
type APIConfig struct {
	// BaseURL is the backend root, e.g. https://host/api/ (required)
	BaseURL string `env:"API_BASE_URL" envAlt:"API_URL" required:"true"`

	// Timeout bounds a single backend request (default: 30s)
	Timeout time.Duration `env:"API_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the session store connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty selects the in-memory
	// session store.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SessionConfig holds browser session settings.
type SessionConfig struct {
	// CookieName names the session cookie (default: secretaria_session)
	CookieName string `env:"SESSION_COOKIE_NAME" default:"secretaria_session"`

	// IdleTTL is how long an unused session survives (default: 8h)
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" default:"8h"`

	// PruneSchedule is the cron spec for removing idle sessions (default: @every 15m)
	PruneSchedule string `env:"SESSION_PRUNE_SCHEDULE" default:"@every 15m"`

	// SecureCookie sets the Secure flag on the cookie (default: true)
	SecureCookie bool `env:"SESSION_SECURE_COOKIE" default:"true"`
}

// AuthConfig holds token handling settings.
type AuthConfig struct {
	// RefreshLead is how long before expiry tokens are renewed (default: 5m)
	RefreshLead time.Duration `env:"AUTH_REFRESH_LEAD" default:"5m"`

	// ConfirmTTL is how long a confirmation dialog stays answerable (default: 10m)
	ConfirmTTL time.Duration `env:"AUTH_CONFIRM_TTL" default:"10m"`
}

// TableConfig holds table engine settings.
type TableConfig struct {
	// PageSize is the default rows per page (default: 10)
	PageSize int `env:"TABLE_PAGE_SIZE" default:"10"`

	// InstanceTTL is how long an unused table instance is kept (default: 30m)
	InstanceTTL time.Duration `env:"TABLE_INSTANCE_TTL" default:"30m"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// LoginPerMinute is the rate limit per IP for login attempts (default: 10)
	LoginPerMinute int `env:"RATE_LIMIT_LOGIN" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`

	// File, when set, also writes logs to a rotating file
	File string `env:"LOG_FILE"`

	// MaxSizeMB rotates the log file at this size (default: 50)
	MaxSizeMB int `env:"LOG_MAX_SIZE_MB" default:"50"`

	// MaxBackups is how many rotated files to keep (default: 5)
	MaxBackups int `env:"LOG_MAX_BACKUPS" default:"5"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsesPostgres reports whether sessions are kept in PostgreSQL.
func (c *DatabaseConfig) UsesPostgres() bool {
	return c.URL != ""
}
