package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	StorageFormatJSON = "json"
	StorageFormatYAML = "yaml"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	AccessLog AccessLogConfig
	App       AppConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" required:"true"`
	Host            string        `envconfig:"SERVER_HOST" required:"true"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" required:"true"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" required:"true"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" required:"true"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" required:"true"`

	// CORSAllowedOrigins is a comma-separated origin list; empty allows any.
	CORSAllowedOrigins []string      `envconfig:"SERVER_CORS_ALLOWED_ORIGINS"`
	CORSMaxAge         time.Duration `envconfig:"SERVER_CORS_MAX_AGE" default:"24h"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.CORSMaxAge < 0 {
		return fmt.Errorf("cors max age cannot be negative")
	}
	for _, origin := range c.CORSAllowedOrigins {
		if origin != "*" && !strings.Contains(origin, "://") {
			return fmt.Errorf("invalid cors origin %q: must be \"*\" or scheme://host", origin)
		}
	}
	return nil
}

// StorageConfig selects where domains and links are read from.
type StorageConfig struct {
	Driver   string        `envconfig:"STORAGE_DRIVER" default:"file"`
	Dir      string        `envconfig:"STORAGE_DIR" default:"./config"`
	Format   string        `envconfig:"STORAGE_FORMAT" default:"json"`
	CacheTTL time.Duration `envconfig:"STORAGE_CACHE_TTL" default:"0s"` // 0 reloads tables on every lookup
	// SQLiteURL is a local sqlite DSN or a libsql:// Turso URL.
	SQLiteURL string `envconfig:"STORAGE_SQLITE_URL"`
}

// SQLiteDSN returns SQLiteURL, defaulting to a database file in Dir.
func (c *StorageConfig) SQLiteDSN() string {
	if c.SQLiteURL != "" {
		return c.SQLiteURL
	}
	return "file:" + filepath.Join(c.Dir, "shortlinker.db")
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case StorageDriverFile, StorageDriverPostgres, StorageDriverSQLite:
	default:
		return fmt.Errorf("invalid storage driver: %s (must be one of: file, postgres, sqlite)", c.Driver)
	}
	// The logs directory lives under Dir for both drivers.
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("storage dir cannot be empty")
	}
	switch c.Format {
	case StorageFormatJSON, StorageFormatYAML:
	default:
		return fmt.Errorf("invalid storage format: %s (must be one of: json, yaml)", c.Format)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}
	return nil
}

// DatabaseConfig holds database connection configuration.
// It is only consulted when the storage driver is postgres.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"1"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := map[string]bool{
		"disable":     true,
		"require":     true,
		"verify-ca":   true,
		"verify-full": true,
	}
	if !validSSLModes[c.SSLMode] {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// AccessLogConfig controls the access log handle cache.
type AccessLogConfig struct {
	SweepInterval time.Duration `envconfig:"ACCESS_LOG_SWEEP_INTERVAL" default:"60s"`
	IdleThreshold time.Duration `envconfig:"ACCESS_LOG_IDLE_THRESHOLD" default:"60m"`
}

// Validate validates the access log configuration.
func (c *AccessLogConfig) Validate() error {
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.IdleThreshold <= 0 {
		return fmt.Errorf("idle threshold must be positive")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" required:"true"`   // development, staging, production, test
	LogLevel    string `envconfig:"LOG_LEVEL" required:"true"` // debug, info, warn, error
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}

// MetricsConfig holds configuration for the prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"true"`
	Path      string `envconfig:"METRICS_PATH" default:"/metrics"`
	Namespace string `envconfig:"METRICS_NAMESPACE" default:"shortlinker"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("metrics path must start with '/', got %q", c.Path)
	}
	if c.Path == "/x/health" {
		return fmt.Errorf("metrics path collides with the health endpoint")
	}
	if c.Namespace == "" {
		return fmt.Errorf("metrics namespace is required when metrics are enabled")
	}
	return nil
}

// Load loads configuration from environment variables only.
// (Do .env loading in internal/app for dev, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load Server config: %w", err)
	}
	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to load Storage config: %w", err)
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Storage config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to load Database config: %w", err)
	}
	if cfg.Storage.Driver == StorageDriverPostgres {
		if err := cfg.Database.Validate(); err != nil {
			return nil, fmt.Errorf("invalid Database config: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg.AccessLog); err != nil {
		return nil, fmt.Errorf("failed to load AccessLog config: %w", err)
	}
	if err := cfg.AccessLog.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AccessLog config: %w", err)
	}

	if err := envconfig.Process("", &cfg.App); err != nil {
		return nil, fmt.Errorf("failed to load App config: %w", err)
	}
	if err := cfg.App.Validate(); err != nil {
		return nil, fmt.Errorf("invalid App config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Metrics); err != nil {
		return nil, fmt.Errorf("failed to load Metrics config: %w", err)
	}
	if err := cfg.Metrics.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Metrics config: %w", err)
	}

	return cfg, nil
}
