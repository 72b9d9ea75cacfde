// Command sitecheck checks HTTP availability for lists of websites, from the
// terminal or as a JSON API.
package main

import (
	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/sitecheck/sitecheck/internal/cmd"
	"github.com/sitecheck/sitecheck/internal/server/handlers"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=...".
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// Commands log their own failures; this only sets the exit code.
		cmd.ExitWithCodeStderr(foundry.ExitFailure, "Command execution failed", err)
	}
}
