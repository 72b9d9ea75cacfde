package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/appid"
)

func withVersionInfo(t *testing.T, version, commit, built string) {
	t.Helper()
	prev := versionInfo
	SetVersionInfo(version, commit, built)
	t.Cleanup(func() { versionInfo = prev })
}

func TestVersionReportBasic(t *testing.T) {
	withVersionInfo(t, "1.4.0", "abc123", "2025-05-01")

	var buf bytes.Buffer
	require.NoError(t, newVersionReport("sitecheck", false).write(&buf, false))
	assert.Equal(t, "sitecheck 1.4.0\n", buf.String())
}

func TestVersionReportExtendedJSON(t *testing.T) {
	withVersionInfo(t, "1.4.0", "abc123", "2025-05-01")

	var buf bytes.Buffer
	require.NoError(t, newVersionReport("sitecheck", true).write(&buf, true))

	var got map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "abc123", got["commit"])
	assert.Equal(t, "2025-05-01", got["build_date"])
	assert.NotEmpty(t, got["go"])
}

func TestVersionCommandWritesToCommandOutput(t *testing.T) {
	withVersionInfo(t, "dev", "", "")

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--json"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"version": "dev"`)
}

func TestApplyIdentity(t *testing.T) {
	prevUse, prevShort, prevLong := rootCmd.Use, rootCmd.Short, rootCmd.Long
	t.Cleanup(func() { rootCmd.Use, rootCmd.Short, rootCmd.Long = prevUse, prevShort, prevLong })

	applyIdentity(&appidentity.Identity{BinaryName: "webcheck", Description: "Check sites"})
	assert.Equal(t, "webcheck", rootCmd.Use)
	assert.Equal(t, "Check sites", rootCmd.Short)
	assert.Contains(t, rootCmd.Long, "webcheck - Check sites")
}

func TestRepositoryIdentity(t *testing.T) {
	identity, err := appid.Get(context.Background())
	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "sitecheck", identity.BinaryName)
	assert.Equal(t, "SITECHECK_", appid.EnvPrefix(identity))
	assert.NotEmpty(t, identity.ConfigName)
}
