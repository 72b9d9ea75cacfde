package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/core/engine"
	errwrap "github.com/sitecheck/sitecheck/internal/errors"
	"github.com/sitecheck/sitecheck/internal/observability"
)

type selfCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// selfChecks verify the binary could start a server: build metadata, a
// loadable config and a usable check strategy.
func selfChecks() []selfCheck {
	return []selfCheck{
		{"version information", func(context.Context) (string, error) {
			if versionInfo.Version == "" {
				return "", fmt.Errorf("version information missing")
			}
			return versionInfo.Version, nil
		}},
		{"configuration", func(ctx context.Context) (string, error) {
			cfg, err := currentConfig(ctx)
			if err != nil {
				return "", err
			}
			if _, err := engine.ParseStrategy(cfg.Checker.Strategy); err != nil {
				return "", err
			}
			return "strategy=" + cfg.Checker.Strategy, nil
		}},
	}
}

// runSelfChecks logs each check and returns the name and error of the first
// failure.
func runSelfChecks(ctx context.Context, log *logging.Logger, checks []selfCheck) (string, error) {
	for _, check := range checks {
		detail, err := check.run(ctx)
		if err != nil {
			log.Error("FAIL: "+check.name, zap.Error(err))
			return check.name, err
		}
		log.Info("PASS: "+check.name, zap.String("detail", detail))
	}
	return "", nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the build metadata and configuration a server start would need.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		if log == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("logger not initialized"))
			return
		}

		log.Info("Running health check...")
		if name, err := runSelfChecks(cmd.Context(), log, selfChecks()); err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Health check failed: "+name, errwrap.NewConfigInvalidError(err.Error()))
			return
		}
		log.Info("All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
