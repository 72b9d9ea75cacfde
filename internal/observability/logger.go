package observability

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

var (
	// CLILogger writes human-readable lines for the command line.
	CLILogger *logging.Logger

	// ServerLogger writes JSON lines with correlation IDs for the service.
	ServerLogger *logging.Logger
)

// InitCLILogger (re)creates CLILogger. Debug output is enabled by verbose or
// by a configured debug or trace level.
func InitCLILogger(serviceName string, verbose bool, level ...string) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatal(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}
	if verbose || (len(level) > 0 && isDebugLevel(level[0])) {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger (re)creates ServerLogger. SIGHUP calls it again with the
// reloaded level.
func InitServerLogger(serviceName, logLevel, profile string, namespace ...string) {
	logger, err := logging.New(ServerLoggerConfig(serviceName, logLevel, profile, namespace...))
	if err != nil {
		fatal(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// ServerLoggerConfig returns a STRUCTURED config unless profile is SIMPLE.
// A non-empty namespace is attached to every entry.
func ServerLoggerConfig(serviceName, logLevel, profile string, namespace ...string) *logging.LoggerConfig {
	cfg := &logging.LoggerConfig{
		DefaultLevel: ParseLogLevel(logLevel),
		Service:      serviceName,
		StaticFields: map[string]any{},
	}
	if len(namespace) > 0 && namespace[0] != "" {
		cfg.StaticFields["namespace"] = namespace[0]
	}

	if strings.EqualFold(strings.TrimSpace(profile), "SIMPLE") {
		cfg.Profile = logging.ProfileSimple
		cfg.Environment = "development"
		cfg.Sinks = []logging.SinkConfig{stderrSink("console")}
		return cfg
	}

	cfg.Profile = logging.ProfileStructured
	cfg.Environment = "production"
	cfg.Sinks = []logging.SinkConfig{stderrSink("json")}
	cfg.Middleware = []logging.MiddlewareConfig{
		{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
	}
	cfg.EnableCaller = true
	cfg.EnableStacktrace = true
	return cfg
}

func stderrSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:    "console",
		Format:  format,
		Console: &logging.ConsoleSinkConfig{Stream: "stderr"},
	}
}

var levels = map[string]string{
	"trace":   "TRACE",
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// ParseLogLevel maps a configured level to a gofulmen severity. Unknown
// values mean INFO.
func ParseLogLevel(levelStr string) string {
	if level, ok := levels[strings.ToLower(strings.TrimSpace(levelStr))]; ok {
		return level
	}
	return "INFO"
}

func isDebugLevel(level string) bool {
	parsed := ParseLogLevel(level)
	return parsed == "DEBUG" || parsed == "TRACE"
}

// fatal reports a logger construction failure on stderr and exits; no logger
// exists yet to report it through.
func fatal(code foundry.ExitCode, msg string, err error) {
	os.Exit(writeFatal(os.Stderr, code, msg, err))
}

func writeFatal(w io.Writer, code foundry.ExitCode, msg string, err error) int {
	line := "FATAL: " + msg
	if err != nil {
		line += ": " + err.Error()
	}
	info, ok := foundry.GetExitCodeInfo(code)
	if !ok {
		_, _ = fmt.Fprintf(w, "%s (exit code: %d)\n", line, code)
		return int(code)
	}
	_, _ = fmt.Fprintf(w, "%s\nExit Code: %d (%s) - %s\n", line, info.Code, info.Name, info.Description)
	return info.Code
}
