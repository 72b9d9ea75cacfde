package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/appid"
	"github.com/sitecheck/sitecheck/internal/config"
	"github.com/sitecheck/sitecheck/internal/observability"
)

// Global flag values.
var (
	cfgFile string
	envFile string
	verbose bool
)

var appIdentity *appidentity.Identity

// buildInfo is stamped by the linker through main.
type buildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo buildInfo

// SetVersionInfo records the build metadata reported by version and serve.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo = buildInfo{Version: version, Commit: commit, BuildDate: buildDate}
}

// GetAppIdentity returns the identity from .fulmen/app.yaml, or the embedded
// default. Nil only if neither could be read.
func GetAppIdentity() *appidentity.Identity {
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:   filepath.Base(os.Args[0]),
	Short: "Check HTTP availability for a list of websites",
	Long: `Check HTTP availability for a list of websites.

Domains come from arguments, plain lists or CSV/Excel files and are checked
either by a status-check service or by paced local probes.`,
	SilenceUsage: true,
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Config loading may touch telemetry before serve installs the real
	// exporter; keep it from writing to stdout.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	// Help output is rendered before OnInitialize hooks run.
	if identity, err := appid.Get(context.Background()); err == nil && identity != nil {
		appIdentity = identity
		applyIdentity(identity)
	}

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (optional; defaults to app identity config path)")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration (missing file is ignored)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

func applyIdentity(identity *appidentity.Identity) {
	if identity.BinaryName != "" {
		rootCmd.Use = identity.BinaryName
	}
	if identity.Description == "" {
		return
	}
	rootCmd.Short = identity.Description
	rootCmd.Long = fmt.Sprintf("%s - %s\n\nUse the subcommands to perform specific operations.", identity.BinaryName, identity.Description)
}

// initConfig resolves the identity, then loads .env, the config file and
// SITECHECK_* variables, in that order of increasing precedence.
func initConfig() {
	ctx := context.Background()

	identity, err := appid.Get(ctx)
	if err != nil {
		ExitWithCodeStderr(foundry.ExitFileNotFound, "Failed to load app identity from .fulmen/app.yaml", err)
	}
	appIdentity = identity
	applyIdentity(identity)
	if f := rootCmd.PersistentFlags().Lookup("config"); f != nil && identity.ConfigName != "" {
		f.Usage = fmt.Sprintf("config file (default is $XDG_CONFIG_HOME/%s/config.yaml)", identity.ConfigName)
	}

	observability.InitCLILogger(identity.BinaryName, verbose)
	log := observability.CLILogger

	if err := config.LoadDotEnv(envFile); err != nil {
		log.Warn("Failed to load dotenv file", zap.String("path", envFile), zap.Error(err))
	}

	cfg, err := config.LoadFile(ctx, cfgFile)
	if err != nil {
		ExitWithCode(log, foundry.ExitConfigInvalid, "Failed to load configuration", err)
	}

	// Re-create the logger so a configured debug level reaches the CLI too.
	observability.InitCLILogger(identity.BinaryName, verbose, cfg.Logging.Level)

	source := cfgFile
	if source == "" {
		source = config.DefaultConfigPath()
	}
	observability.CLILogger.Debug("Configuration loaded", zap.String("path", source), zap.Bool("explicit", cfgFile != ""))
}

// currentConfig returns the loaded configuration, loading it when a command
// runs without the root initializer, as in tests.
func currentConfig(ctx context.Context) (*config.Config, error) {
	if cfg := config.GetConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadFile(ctx, cfgFile)
}
