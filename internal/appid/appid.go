// Package appid resolves the application identity (binary name, env prefix,
// config name) from .fulmen/app.yaml, falling back to the copy compiled into
// the binary.
package appid

import (
	"context"
	_ "embed"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

// DefaultEnvPrefix applies when no identity provides one.
const DefaultEnvPrefix = "SITECHECK_"

// Mirror of .fulmen/app.yaml; the two files must stay identical.
//
//go:embed app.yaml
var embedded []byte

func init() {
	// FULMEN_APP_IDENTITY_PATH and a discovered .fulmen/app.yaml still win
	// over the embedded copy.
	_ = appidentity.RegisterEmbeddedIdentityYAML(embedded)
}

// Get returns the process identity. gofulmen caches it after the first call.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// Embedded returns the identity YAML compiled into the binary.
func Embedded() []byte {
	return embedded
}

// EnvPrefix returns identity's env prefix with a trailing underscore, or
// DefaultEnvPrefix when identity is nil or has none.
func EnvPrefix(identity *appidentity.Identity) string {
	prefix := DefaultEnvPrefix
	if identity != nil && strings.TrimSpace(identity.EnvPrefix) != "" {
		prefix = strings.TrimSpace(identity.EnvPrefix)
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}
