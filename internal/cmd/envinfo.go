package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/sitecheck/sitecheck/internal/config"
	"github.com/sitecheck/sitecheck/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== SiteCheck Environment Information ===")
		log.Info("")

		// Application Info
		name := "sitecheck"
		if identity := GetAppIdentity(); identity != nil && identity.BinaryName != "" {
			name = identity.BinaryName
		}
		log.Info("Application:")
		log.Info("  Name:       " + name)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		// SSOT Info
		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		// Runtime Info
		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := currentConfig(cmd.Context())
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Metrics:        %t (port %d)", cfg.Metrics.Enabled, cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("Service:")
		serviceURL := cfg.Service.BaseURL
		if strings.TrimSpace(serviceURL) == "" {
			serviceURL = "(unset)"
		}
		log.Info("  Base URL:       "+serviceURL, zap.String("service_url", cfg.Service.BaseURL))
		log.Info("  Timeout:        " + cfg.Service.Timeout.String())
		log.Info("  Single Timeout: " + cfg.Service.SingleTimeout.String())
		log.Info("")

		log.Info("Checker:")
		log.Info("  Strategy:       "+cfg.Checker.Strategy, zap.String("strategy", cfg.Checker.Strategy))
		log.Info("  Prober:         "+cfg.Checker.Prober, zap.String("prober", cfg.Checker.Prober))
		log.Info(fmt.Sprintf("  Batch Size:     %d", cfg.Checker.BatchSize))
		log.Info("  Pacing:         " + cfg.Checker.Pacing.String())
		log.Info("  Probe Timeout:  " + cfg.Checker.ProbeTimeout.String())
		if strings.TrimSpace(cfg.Checker.RelayURL) != "" {
			log.Info("  Relay URL:      " + cfg.Checker.RelayURL)
		}
		log.Info("  User Agent:     " + userAgent(cfg))
		log.Info("")

		log.Info("Ingest & View:")
		log.Info(fmt.Sprintf("  Max File Size:  %d bytes", cfg.Ingest.MaxFileSize))
		log.Info(fmt.Sprintf("  Page Size:      %d", cfg.View.PageSize))
		log.Info("")

		log.Info("Cache:")
		log.Info(fmt.Sprintf("  Enabled:        %t", cfg.Cache.Enabled), zap.Bool("cache_enabled", cfg.Cache.Enabled))
		if cfg.Cache.Enabled {
			log.Info("  Active TTL:     " + cfg.Cache.ActiveTTL.String())
			log.Info("  Error TTL:      " + cfg.Cache.ErrorTTL.String())
			log.Info("  Fail TTL:       " + cfg.Cache.FailTTL.String())
		}
		log.Info("")

		log.Info("Rate Limits:")
		log.Info(fmt.Sprintf("  Inbound:        %t (%.2f req/s, burst %d)",
			cfg.RateLimit.Enabled, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
		log.Info(fmt.Sprintf("  Outbound margin: %.2f", cfg.RateLimitMargin))
		for endpoint, rpm := range cfg.RateLimits {
			log.Info(fmt.Sprintf("  %s: %d req/min", endpoint, rpm))
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
