// Package config provides centralized configuration management for sitecheck.
// Layers, lowest to highest:
// 1. Built-in defaults (SetDefaults)
// 2. User config file (XDG path from the app identity, or an explicit file)
// 3. Environment variables, including a .env file in the working directory
// 4. Runtime overrides (CLI flags)
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sitecheck/sitecheck/internal/appid"
)

var (
	// appConfig holds the current application configuration
	appConfig   *Config
	configMu    sync.RWMutex
	appIdentity *appidentity.Identity
)

// EnvBinding maps a short environment variable suffix to a config key.
// Every key is also reachable through its long form, e.g. SITECHECK_SERVER_PORT.
type EnvBinding struct {
	Name string
	Key  string
}

// Load loads configuration from defaults, the discovered user config file,
// the environment and runtime overrides.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", runtimeOverrides...)
}

// LoadFile is Load with an explicit config file. An empty path falls back to
// discovery; an explicit path that cannot be read is an error.
func LoadFile(ctx context.Context, file string, runtimeOverrides ...map[string]any) (*Config, error) {
	if appIdentity == nil {
		identity, err := appid.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load app identity: %w", err)
		}
		appIdentity = identity
	}

	v := viper.New()
	SetDefaults(v)

	if err := readConfigFile(v, file); err != nil {
		return nil, err
	}

	prefix := envPrefix()
	v.SetEnvPrefix(strings.TrimSuffix(prefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, b := range EnvBindings() {
		if err := v.BindEnv(b.Key, prefix+b.Name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", b.Name, err)
		}
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	settings := v.AllSettings()
	// Endpoint names contain dots, which viper would otherwise split into
	// nested keys.
	if raw := v.Get("rate_limits"); raw != nil {
		settings["rate_limits"] = raw
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = ":memory:"
	}

	setConfig(cfg)

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Service client defaults
	v.SetDefault("service.base_url", "http://127.0.0.1:5000")
	v.SetDefault("service.timeout", "5m")
	v.SetDefault("service.single_timeout", "30s")

	// Checker defaults
	v.SetDefault("checker.strategy", "server")
	v.SetDefault("checker.prober", "service")
	v.SetDefault("checker.batch_size", 5)
	v.SetDefault("checker.pacing", "1s")
	v.SetDefault("checker.probe_timeout", "10s")
	v.SetDefault("checker.relay_url", "https://api.allorigins.win/get")
	v.SetDefault("checker.user_agent", "")

	v.SetDefault("ingest.max_file_size", 5*1024*1024)
	v.SetDefault("view.page_size", 10)

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", ":memory:")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.active_ttl", "1m")
	v.SetDefault("cache.error_ttl", "30s")
	v.SetDefault("cache.fail_ttl", "10s")

	// Inbound rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 5.0)
	v.SetDefault("rate_limit.burst", 10)

	// Outbound rate limit overrides (optional)
	v.SetDefault("rate_limits", map[string]int{})
	v.SetDefault("rate_limit_margin", 0.9)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
	v.SetDefault("debug.pprof_enabled", false)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// EnvBindings returns the short environment variable names, without prefix.
func EnvBindings() []EnvBinding {
	return []EnvBinding{
		// Server config
		{Name: "HOST", Key: "server.host"},
		{Name: "PORT", Key: "server.port"},
		{Name: "READ_TIMEOUT", Key: "server.read_timeout"},
		{Name: "WRITE_TIMEOUT", Key: "server.write_timeout"},
		{Name: "IDLE_TIMEOUT", Key: "server.idle_timeout"},
		{Name: "SHUTDOWN_TIMEOUT", Key: "server.shutdown_timeout"},

		// Service client
		{Name: "SERVICE_URL", Key: "service.base_url"},
		{Name: "SERVICE_TIMEOUT", Key: "service.timeout"},

		// Checker
		{Name: "STRATEGY", Key: "checker.strategy"},
		{Name: "PROBER", Key: "checker.prober"},
		{Name: "BATCH_SIZE", Key: "checker.batch_size"},
		{Name: "PACING", Key: "checker.pacing"},
		{Name: "RELAY_URL", Key: "checker.relay_url"},

		{Name: "MAX_FILE_SIZE", Key: "ingest.max_file_size"},

		// Logging config
		{Name: "LOG_LEVEL", Key: "logging.level"},
		{Name: "LOG_PROFILE", Key: "logging.profile"},

		// Store config
		{Name: "DB_DRIVER", Key: "store.driver"},
		{Name: "DB_PATH", Key: "store.path"},
		{Name: "DB_URL", Key: "store.url"},
		{Name: "DB_AUTH_TOKEN", Key: "store.auth_token"},

		{Name: "CACHE_ENABLED", Key: "cache.enabled"},
		{Name: "RATE_LIMIT_MARGIN", Key: "rate_limit_margin"},

		// Metrics config
		{Name: "METRICS_ENABLED", Key: "metrics.enabled"},
		{Name: "METRICS_PORT", Key: "metrics.port"},

		{Name: "HEALTH_ENABLED", Key: "health.enabled"},

		// Debug config
		{Name: "DEBUG_ENABLED", Key: "debug.enabled"},
		{Name: "DEBUG_PPROF_ENABLED", Key: "debug.pprof_enabled"},
	}
}

func readConfigFile(v *viper.Viper, file string) error {
	if strings.TrimSpace(file) != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
		return nil
	}

	for _, path := range getUserConfigPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// getUserConfigPaths returns the list of user config file paths to check
// Uses gofulmen/config for XDG-compliant path discovery
func getUserConfigPaths() []string {
	configName, binaryName := appNamesForPaths()

	legacyNames := []string{}
	if binaryName != configName {
		legacyNames = append(legacyNames, binaryName)
	}
	return gfconfig.GetAppConfigPaths(configName, legacyNames...)
}

func envPrefix() string {
	return appid.EnvPrefix(appIdentity)
}

// EnvPrefix returns the environment variable prefix from the app identity.
func EnvPrefix() string {
	return envPrefix()
}

// appNamesForPaths returns the config name and binary name from app identity,
// falling back to "sitecheck" if not set.
func appNamesForPaths() (configName string, binaryName string) {
	configName = "sitecheck"
	binaryName = "sitecheck"
	if appIdentity == nil {
		return configName, binaryName
	}

	if strings.TrimSpace(appIdentity.ConfigName) != "" {
		configName = appIdentity.ConfigName
	}
	if strings.TrimSpace(appIdentity.BinaryName) != "" {
		binaryName = appIdentity.BinaryName
	}
	return configName, binaryName
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configName, _ := appNamesForPaths()
	configDir := gfconfig.GetAppConfigDir(configName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultDataDir returns the XDG-compliant data directory for the app.
func DefaultDataDir() string {
	configName, _ := appNamesForPaths()
	return gfconfig.GetAppDataDir(configName)
}

// DefaultStorePath returns the XDG-compliant path to a persistent database
// file, for operators who want the probe cache to survive restarts.
func DefaultStorePath() string {
	_, binaryName := appNamesForPaths()
	dataDir := DefaultDataDir()
	if strings.TrimSpace(dataDir) == "" {
		return "./" + binaryName + ".db"
	}
	return filepath.Join(dataDir, binaryName+".db")
}

// Keys returns every known config key, sorted.
func Keys() []string {
	v := viper.New()
	SetDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

func flatten(prefix string, in map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range in {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok && full != "rate_limits" {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}
