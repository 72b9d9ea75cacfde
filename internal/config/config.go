package config

import (
	"time"
)

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the user config file
// (~/.config/sitecheck/config.yaml), then environment variables, then
// runtime overrides.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Service   ServiceConfig   `mapstructure:"service"`
	Checker   CheckerConfig   `mapstructure:"checker"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	View      ViewConfig      `mapstructure:"view"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`

	// RateLimits overrides outbound requests-per-minute by endpoint.
	RateLimits      map[string]int `mapstructure:"rate_limits"`
	RateLimitMargin float64        `mapstructure:"rate_limit_margin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ServiceConfig points the CLI at a running status-check service.
type ServiceConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	SingleTimeout time.Duration `mapstructure:"single_timeout"`
}

// CheckerConfig selects and tunes the check strategy.
type CheckerConfig struct {
	// Strategy is "server" (delegate the batch to the service) or "paced".
	Strategy string `mapstructure:"strategy"`

	// Prober is used by the paced strategy: "service", "direct" or "relay".
	Prober string `mapstructure:"prober"`

	BatchSize    int           `mapstructure:"batch_size"`
	Pacing       time.Duration `mapstructure:"pacing"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	RelayURL     string        `mapstructure:"relay_url"`
	UserAgent    string        `mapstructure:"user_agent"`
}

// IngestConfig bounds file ingestion.
type IngestConfig struct {
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// ViewConfig contains result view defaults.
type ViewConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"` // libsql (default) or sqlite
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig controls the probe cache used by the direct prober.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	ActiveTTL time.Duration `mapstructure:"active_ttl"`
	ErrorTTL  time.Duration `mapstructure:"error_ttl"`
	FailTTL   time.Duration `mapstructure:"fail_ttl"`
}

// RateLimitConfig is the per-client inbound limit on the check endpoints.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles:
// - SIMPLE: Console output only (CLI)
// - STRUCTURED: JSON output with correlation IDs (service)
type LoggingConfig struct {
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
