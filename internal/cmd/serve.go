package cmd

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/config"
	"github.com/sitecheck/sitecheck/internal/core/store"
	errwrap "github.com/sitecheck/sitecheck/internal/errors"
	"github.com/sitecheck/sitecheck/internal/metrics"
	"github.com/sitecheck/sitecheck/internal/observability"
	"github.com/sitecheck/sitecheck/internal/server"
	"github.com/sitecheck/sitecheck/internal/server/handlers"
)

const (
	defaultMetricsPort     = 9090
	defaultShutdownTimeout = 10 * time.Second
)

var (
	serverPort int
	serverHost string
)

// checkFunc adapts a function to handlers.HealthChecker.
type checkFunc func(ctx context.Context) error

func (f checkFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

func telemetryReady(context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

func identityComplete(identity *appidentity.Identity) checkFunc {
	return func(context.Context) error {
		switch {
		case identity == nil:
			return errwrap.NewConfigInvalidError("app identity not loaded")
		case identity.BinaryName == "":
			return errwrap.NewConfigInvalidError("app identity missing binary name")
		case identity.EnvPrefix == "":
			return errwrap.NewConfigInvalidError("app identity missing env prefix")
		case identity.ConfigName == "":
			return errwrap.NewConfigInvalidError("app identity missing config name")
		}
		return nil
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status-check service",
	Long: `Start the status-check HTTP service with graceful shutdown support.

Endpoints:
  POST /api/check-bulk     {"domains": [...]}
  POST /api/check-single   {"domain": "..."}
  POST /file_upload        multipart form with a "file" field (.csv, .xlsx, .xls)

Domains are probed directly in paced batches. Probe results are cached in
the store when cache.enabled is set.

Signals:
  SIGINT, SIGTERM   graceful shutdown (Ctrl+C twice within 2s forces quit)
  SIGHUP            reload configuration (log level only)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 5000, "server port (overrides server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := currentConfig(ctx)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}

	identity := GetAppIdentity()
	if identity == nil {
		return errwrap.NewConfigInvalidError("app identity not loaded")
	}
	namespace := identity.TelemetryNamespace()
	observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, cfg.Logging.Profile, namespace)
	log := observability.ServerLogger

	metricsPort := cfg.Metrics.Port
	if metricsPort == 0 {
		metricsPort = defaultMetricsPort
	}
	if cfg.Metrics.Enabled {
		if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
			log.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
	}
	metrics.SetServerStartTime(time.Now().Unix())

	log.Info("Initializing server",
		zap.String("service", identity.BinaryName),
		zap.String("namespace", namespace),
		zap.String("version", versionInfo.Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("metrics_port", metricsPort),
		zap.Bool("cache", cfg.Cache.Enabled))

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("Failed to open store", zap.Error(err))
		return errwrap.WrapDatabaseError(ctx, err, "store initialization failed")
	}

	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("signal_handlers", checkFunc(func(context.Context) error { return nil }))
	hm.RegisterChecker("app_identity", identityComplete(identity))
	hm.RegisterOptional("store", db)
	if cfg.Metrics.Enabled {
		hm.RegisterChecker("telemetry", checkFunc(telemetryReady))
	}
	handlers.SetAppIdentity(identity)

	opts := []server.Option{
		server.WithTimeouts(cfg.Server),
		server.WithCheckHandler(&handlers.CheckHandler{
			Checker:     pacedRunner(cfg, directProber(cfg, db), log),
			MaxFileSize: cfg.Ingest.MaxFileSize,
			Logger:      log,
		}),
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, server.WithClientRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	srv := server.New(cfg.Server.Host, cfg.Server.Port, opts...)

	timeout := cfg.Server.ShutdownTimeout
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}
	registerShutdown(srv, db, timeout)
	registerReload(identity.BinaryName, namespace)

	if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
		Window:  2 * time.Second,
		Message: "Press Ctrl+C again within 2 seconds to force quit",
	}); err != nil {
		log.Warn("Failed to enable double-tap force quit", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := signals.Listen(ctx); err != nil {
			log.Error("Signal handler error", zap.Error(err))
			errCh <- err
		}
	}()

	if err := <-errCh; err != nil {
		return errwrap.WrapInternal(ctx, err, "server error")
	}
	return nil
}

// registerShutdown installs the shutdown hooks. signals runs them last
// registered first: drain HTTP, then release the store and exporter, then
// flush the logger.
func registerShutdown(srv *server.Server, db *store.Store, timeout time.Duration) {
	signals.OnShutdown(func(ctx context.Context) error {
		log := observability.ServerLogger
		log.Info("Flushing logger...")
		if err := log.Sync(); err != nil {
			// stderr may already be closed.
			log.Warn("Logger sync returned error (may be benign)", zap.Error(err))
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		if err := observability.ShutdownMetrics(); err != nil {
			observability.ServerLogger.Warn("Metrics exporter stop failed", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "store close failed")
		}
		return nil
	})

	signals.OnShutdown(func(ctx context.Context) error {
		observability.ServerLogger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errwrap.WrapInternal(ctx, err, "server shutdown failed")
		}
		observability.ServerLogger.Info("HTTP server stopped gracefully")
		return nil
	})
}

// registerReload re-reads the config file and environment on SIGHUP. Only
// the log level is applied live; listeners and probers keep their settings.
func registerReload(binary, namespace string) {
	signals.OnReload(func(ctx context.Context) error {
		observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

		reloaded, err := config.LoadFile(ctx, cfgFile)
		if err != nil {
			observability.ServerLogger.Error("Failed to reload config", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "config reload failed")
		}

		observability.InitServerLogger(binary, reloaded.Logging.Level, reloaded.Logging.Profile, namespace)
		observability.ServerLogger.Info("Configuration reloaded successfully",
			zap.String("log_level", reloaded.Logging.Level),
			zap.String("log_profile", reloaded.Logging.Profile))
		return nil
	})
}
