package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/engine"
	"github.com/sitecheck/sitecheck/internal/core/store"
	"github.com/sitecheck/sitecheck/internal/output"
)

func TestAdminOutputParseFormat(t *testing.T) {
	opts := adminOutput{format: "json"}
	format, err := opts.parseFormat()
	require.NoError(t, err)
	assert.Equal(t, output.FormatJSON, format)

	opts.format = "markdown"
	_, err = opts.parseFormat()
	assert.Error(t, err)
}

func TestAdminOutputOpen(t *testing.T) {
	cmd := &cobra.Command{}
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)

	sink, err := (&adminOutput{}).open(cmd, "rate-limit.list", output.FormatTable)
	require.NoError(t, err)
	assert.Same(t, &stdout, sink.writer)

	_, err = (&adminOutput{out: "a.json", outDir: "b"}).open(cmd, "rate-limit.list", output.FormatJSON)
	assert.Error(t, err)

	dir := t.TempDir()
	sink, err = (&adminOutput{outDir: filepath.Join(dir, "reports")}).open(cmd, "rate-limit.list", output.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, writeIndentedJSON(sink.writer, []int{1}))
	require.NoError(t, sink.close())

	data, err := os.ReadFile(filepath.Join(dir, "reports", "rate-limit.list.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[1]`, string(data))
}

func TestRateLimitResetQuery(t *testing.T) {
	_, err := (&rateLimitResetOptions{}).query()
	assert.ErrorIs(t, err, store.ErrEmptyQuery)

	_, err = (&rateLimitResetOptions{all: true}).query()
	assert.ErrorContains(t, err, "--yes")

	q, err := (&rateLimitResetOptions{all: true, dryRun: true}).query()
	require.NoError(t, err)
	assert.True(t, q.All)

	q, err = (&rateLimitResetOptions{endpoint: "example.com"}).query()
	require.NoError(t, err)
	assert.Equal(t, "example.com", q.Endpoint)
}

func TestRateLimitResetResultWrite(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, rateLimitResetResult{Matched: 3, DryRun: true}.write(output.FormatTable, &buf))
	assert.Equal(t, "Would delete 3 rate limit entr(ies)\n", buf.String())

	buf.Reset()
	require.NoError(t, rateLimitResetResult{Matched: 3, Deleted: 2}.write(output.FormatTable, &buf))
	assert.Equal(t, "Deleted 2/3 rate limit entr(ies)\n", buf.String())

	buf.Reset()
	require.NoError(t, rateLimitResetResult{Matched: 1, Deleted: 1}.write(output.FormatJSON, &buf))
	assert.JSONEq(t, `{"matched":1,"deleted":1,"dry_run":false}`, buf.String())
}

func TestWriteRateLimitTable(t *testing.T) {
	backoff := time.Date(2025, 5, 1, 10, 0, 30, 0, time.UTC)
	entries := []store.RateLimitEntry{
		{Endpoint: "corsproxy.io", State: core.RateLimitState{RequestCount: 7, BackoffUntil: &backoff}},
		{Endpoint: "example.com", State: core.RateLimitState{RequestCount: 2}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeRateLimitTable(&buf, entries, &engine.RateLimiter{}))
	out := buf.String()
	assert.Contains(t, out, "corsproxy.io: count=7/60 per 1m0s backoff_until=2025-05-01T10:00:30Z")
	assert.Contains(t, out, "example.com: count=2/30 per 1m0s backoff_until=-")

	buf.Reset()
	require.NoError(t, writeRateLimitTable(&buf, nil, &engine.RateLimiter{}))
	assert.Contains(t, buf.String(), "(no stored rate limit state)")
}
