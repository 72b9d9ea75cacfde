package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateConfigHome(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolateConfigHome(t)

		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 5000, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify service client defaults
		assert.Equal(t, "http://127.0.0.1:5000", cfg.Service.BaseURL)
		assert.Equal(t, 5*time.Minute, cfg.Service.Timeout)
		assert.Equal(t, 30*time.Second, cfg.Service.SingleTimeout)

		// Verify checker defaults
		assert.Equal(t, "server", cfg.Checker.Strategy)
		assert.Equal(t, "service", cfg.Checker.Prober)
		assert.Equal(t, 5, cfg.Checker.BatchSize)
		assert.Equal(t, time.Second, cfg.Checker.Pacing)
		assert.Equal(t, 10*time.Second, cfg.Checker.ProbeTimeout)

		assert.Equal(t, int64(5*1024*1024), cfg.Ingest.MaxFileSize)
		assert.Equal(t, 10, cfg.View.PageSize)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		assert.Equal(t, ":memory:", cfg.Store.Path)
		assert.Equal(t, "", cfg.Store.URL)

		// Verify cache defaults
		assert.False(t, cfg.Cache.Enabled)
		assert.Equal(t, time.Minute, cfg.Cache.ActiveTTL)
		assert.Equal(t, 30*time.Second, cfg.Cache.ErrorTTL)
		assert.Equal(t, 10*time.Second, cfg.Cache.FailTTL)

		// Verify rate limit defaults
		assert.True(t, cfg.RateLimit.Enabled)
		assert.Equal(t, 5.0, cfg.RateLimit.RequestsPerSecond)
		assert.Equal(t, 10, cfg.RateLimit.Burst)
		assert.Equal(t, 0.9, cfg.RateLimitMargin)
		assert.Empty(t, cfg.RateLimits)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
		assert.False(t, cfg.Debug.Enabled)
		assert.False(t, cfg.Debug.PprofEnabled)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolateConfigHome(t)
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolateConfigHome(t)
		t.Setenv("SITECHECK_PORT", "3000")
		t.Setenv("SITECHECK_LOG_LEVEL", "warn")
		t.Setenv("SITECHECK_METRICS_ENABLED", "false")
		t.Setenv("SITECHECK_RATE_LIMIT_MARGIN", "0.8")
		t.Setenv("SITECHECK_CHECKER_BATCH_SIZE", "7")
		t.Setenv("SITECHECK_PACING", "250ms")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, 0.8, cfg.RateLimitMargin)
		assert.Equal(t, 7, cfg.Checker.BatchSize)
		assert.Equal(t, 250*time.Millisecond, cfg.Checker.Pacing)
	})

	// runtime > env > file > defaults
	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolateConfigHome(t)
		t.Setenv("SITECHECK_PORT", "4000")

		cfg, err := Load(ctx, map[string]any{"server": map[string]any{"port": 5001}})
		require.NoError(t, err)
		assert.Equal(t, 5001, cfg.Server.Port)
	})
}

func TestLoadFile(t *testing.T) {
	isolateConfigHome(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  base_url: http://status.internal:8000
checker:
  strategy: paced
  prober: relay
rate_limits:
  api.allorigins.win: 20
`), 0o600))

	cfg, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "http://status.internal:8000", cfg.Service.BaseURL)
	assert.Equal(t, "paced", cfg.Checker.Strategy)
	assert.Equal(t, "relay", cfg.Checker.Prober)
	assert.Equal(t, map[string]int{"api.allorigins.win": 20}, cfg.RateLimits)
	assert.Equal(t, 5, cfg.Checker.BatchSize)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SITECHECK_TEST_DOTENV=from-file\nSITECHECK_TEST_PRESET=from-file\n"), 0o600))
	t.Setenv("SITECHECK_TEST_PRESET", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("SITECHECK_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "from-file", os.Getenv("SITECHECK_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("SITECHECK_TEST_PRESET"))
}

func TestGetConfig(t *testing.T) {
	isolateConfigHome(t)
	cfg, err := Load(context.Background())
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestEnvBindings(t *testing.T) {
	names := make(map[string]bool)
	for _, b := range EnvBindings() {
		names[b.Name] = true
	}

	assert.True(t, names["LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, names["PORT"], "PORT env var must be mapped")
	assert.True(t, names["HOST"], "HOST env var must be mapped")
	assert.True(t, names["SERVICE_URL"], "SERVICE_URL env var must be mapped")
	assert.True(t, names["DB_PATH"], "DB_PATH env var must be mapped")
}

func TestDurationParsing(t *testing.T) {
	isolateConfigHome(t)
	t.Setenv("SITECHECK_READ_TIMEOUT", "45s")
	t.Setenv("SITECHECK_SHUTDOWN_TIMEOUT", "5m")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Server.ShutdownTimeout)
}

func TestKeysIncludesSections(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "checker.strategy")
	assert.Contains(t, keys, "service.base_url")
	assert.Contains(t, keys, "rate_limit.burst")
}
