// Package config provides centralized configuration management for the
// dataset API. Settings come from environment variables with sensible
// defaults and are validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Data       DataConfig
	Security   SecurityConfig
	Upload     UploadConfig
	Validation ValidationConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body.
	// Workbook uploads can be large, so the default is generous.
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"120s"`

	// WriteTimeout bounds response writing; full-registry exports need
	// room (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// Addr returns the host:port string for net/http.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// DataConfig locates the dataset storage root.
type DataConfig struct {
	// Dir is the storage root holding current/, staging/ and archive/
	Dir string `env:"DATA_DIR" default:"./data"`
}

// SecurityConfig holds the admin surface settings.
type SecurityConfig struct {
	// AdminToken is the bearer token required on /api/v1/admin routes (required)
	AdminToken string `env:"ADMIN_TOKEN" required:"true"`
}

// UploadConfig bounds uploaded spreadsheet payloads.
type UploadConfig struct {
	// MaxFileSize is the per-request upload cap in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
}

// ValidationConfig controls the publish policy for validation failures.
type ValidationConfig struct {
	// Strict aborts a refresh when the validation report is non-empty.
	// The default publishes best-effort coerced data and keeps the
	// report for audit (default: false)
	Strict bool `env:"VALIDATION_STRICT" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
