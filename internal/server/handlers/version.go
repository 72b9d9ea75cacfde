package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"
)

// Build metadata reported by /version. main sets it through SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
)

var identity *appidentity.Identity

// APIEndpoints lists the check routes the service exposes.
var APIEndpoints = []string{
	"POST /api/check-bulk",
	"POST /api/check-single",
	"POST /file_upload",
}

// SetVersionInfo records build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion, AppCommit, AppBuildDate = version, commit, buildDate
}

// SetAppIdentity sets the identity whose binary name is reported.
func SetAppIdentity(id *appidentity.Identity) {
	identity = id
}

// VersionResponse is the /version body.
type VersionResponse struct {
	App          AppInfo     `json:"app"`
	API          []string    `json:"api"`
	Dependencies DepInfo     `json:"dependencies"`
	Runtime      RuntimeInfo `json:"runtime"`
}

// AppInfo describes the running build.
type AppInfo struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// DepInfo carries the embedded gofulmen and crucible versions.
type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

func appName() string {
	switch {
	case identity != nil && identity.BinaryName != "":
		return identity.BinaryName
	case len(os.Args) > 0 && os.Args[0] != "":
		return filepath.Base(os.Args[0])
	}
	return "unknown"
}

// VersionHandler serves GET /version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	ssot := crucible.GetVersion()
	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      appName(),
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		API:          APIEndpoints,
		Dependencies: DepInfo{Gofulmen: ssot.Gofulmen, Crucible: ssot.Crucible},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
