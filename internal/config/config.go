// Package config provides centralized configuration management for the application.
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
	Database DatabaseConfig
	Upload   UploadConfig
	Study    StudyConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// Driver selects the store: postgres (production) or sqlite (local).
	Driver string `env:"DATABASE_DRIVER" envDefault:"postgres"`

	// URL is the PostgreSQL connection string, required for postgres.
	// DB_URL is read when DATABASE_URL is unset.
	URL    string `env:"DATABASE_URL"`
	AltURL string `env:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `env:"SQLITE_PATH" envDefault:"studyquest.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// Migrate applies the embedded schema on startup.
	Migrate bool `env:"DB_MIGRATE" envDefault:"true"`
}

// UploadConfig holds word list upload settings.
type UploadConfig struct {
	MaxFileSize   int64         `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"5242880"`
	MaxConcurrent int           `env:"UPLOAD_MAX_CONCURRENT" envDefault:"5"`
	MaxWaitTime   time.Duration `env:"UPLOAD_MAX_WAIT_TIME" envDefault:"30s"`
	Timeout       time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"1m"`

	// SourceEncoding names the encoding uploads are decoded from:
	// any WHATWG label (euc-kr, utf-8, ...) or "auto".
	SourceEncoding string `env:"UPLOAD_SOURCE_ENCODING" envDefault:"euc-kr"`
}

// StudyConfig holds study session settings.
type StudyConfig struct {
	// MaxRetries bounds retries of an experience grant that lost a
	// concurrent update race on the character row.
	MaxRetries int `env:"STUDY_MAX_RETRIES" envDefault:"3"`

	// MaxSessionMinutes rejects implausible session lengths.
	MaxSessionMinutes int `env:"STUDY_MAX_SESSION_MINUTES" envDefault:"1440"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"100"`
	UploadLimit       int  `env:"RATE_LIMIT_UPLOAD" envDefault:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey makes every /api request present one of APIKeys.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" envDefault:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// UserHeader carries the authenticated user id set by the gateway.
	UserHeader string `env:"USER_ID_HEADER" envDefault:"X-User-ID"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DSN returns the effective PostgreSQL URL.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return c.AltURL
}
