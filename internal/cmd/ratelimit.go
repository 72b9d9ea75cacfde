package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/sitecheck/sitecheck/internal/core/engine"
	"github.com/sitecheck/sitecheck/internal/core/store"
	"github.com/sitecheck/sitecheck/internal/output"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect or clear persisted outbound rate limit windows",
}

type rateLimitListOptions struct {
	adminOutput
	prefix string
}

type rateLimitResetOptions struct {
	adminOutput
	all      bool
	endpoint string
	prefix   string
	yes      bool
	dryRun   bool
}

func newRateLimitListCmd() *cobra.Command {
	opts := &rateLimitListOptions{}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored rate limit windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRateLimitList(cmd, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().Bool("all", false, "List all endpoints (default when --prefix is empty)")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "List endpoints with matching prefix")
	return cmd
}

func runRateLimitList(cmd *cobra.Command, opts *rateLimitListOptions) error {
	format, err := opts.parseFormat()
	if err != nil {
		return err
	}
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return err
	}
	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	query := store.RateLimitQuery{Prefix: strings.TrimSpace(opts.prefix)}
	query.All = query.Prefix == ""
	entries, err := db.ListRateLimits(cmd.Context(), query)
	if err != nil {
		return err
	}

	sink, err := opts.open(cmd, "rate-limit.list", format)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	if format == output.FormatJSON {
		return writeIndentedJSON(sink.writer, entries)
	}
	return writeRateLimitTable(sink.writer, entries, outboundLimiter(cfg, nil))
}

func writeRateLimitTable(w io.Writer, entries []store.RateLimitEntry, limiter *engine.RateLimiter) error {
	lines := []string{"Rate Limits", ""}
	if len(entries) == 0 {
		lines = append(lines, "(no stored rate limit state)")
	}
	for _, entry := range entries {
		backoff := "-"
		if entry.State.BackoffUntil != nil {
			backoff = entry.State.BackoffUntil.UTC().Format(time.RFC3339)
		}
		limit := limiter.Limit(entry.Endpoint)
		lines = append(lines, fmt.Sprintf("%s: count=%d/%d per %s backoff_until=%s",
			entry.Endpoint, entry.State.RequestCount, limit.RequestsPerWindow, limit.WindowDuration, backoff))
	}
	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func newRateLimitResetCmd() *cobra.Command {
	opts := &rateLimitResetOptions{}
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete stored rate limit windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRateLimitReset(cmd, opts)
		},
	}
	opts.bind(cmd)
	cmd.Flags().BoolVar(&opts.all, "all", false, "Reset all endpoints")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Reset a single endpoint (exact match)")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "Reset endpoints with matching prefix")
	cmd.Flags().BoolVar(&opts.yes, "yes", false, "Confirm resetting every endpoint")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show what would be deleted")
	return cmd
}

func (o *rateLimitResetOptions) query() (store.RateLimitQuery, error) {
	q := store.RateLimitQuery{All: o.all, Endpoint: o.endpoint, Prefix: o.prefix}
	if err := q.Validate(); err != nil {
		return q, err
	}
	if q.All && !o.yes && !o.dryRun {
		return q, errors.New("--all requires --yes (or use --dry-run)")
	}
	return q, nil
}

func runRateLimitReset(cmd *cobra.Command, opts *rateLimitResetOptions) error {
	format, err := opts.parseFormat()
	if err != nil {
		return err
	}
	query, err := opts.query()
	if err != nil {
		return err
	}
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return err
	}
	db, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	matched, err := db.CountRateLimits(cmd.Context(), query)
	if err != nil {
		return err
	}
	sink, err := opts.open(cmd, "rate-limit.reset", format)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	result := rateLimitResetResult{Matched: matched, DryRun: opts.dryRun}
	if !opts.dryRun {
		if result.Deleted, err = db.ResetRateLimits(cmd.Context(), query); err != nil {
			return err
		}
	}
	return result.write(format, sink.writer)
}

type rateLimitResetResult struct {
	Matched int   `json:"matched"`
	Deleted int64 `json:"deleted"`
	DryRun  bool  `json:"dry_run"`
}

func (r rateLimitResetResult) write(format output.Format, w io.Writer) error {
	if format == output.FormatJSON {
		return writeIndentedJSON(w, r)
	}
	var err error
	if r.DryRun {
		_, err = fmt.Fprintf(w, "Would delete %d rate limit entr(ies)\n", r.Matched)
	} else {
		_, err = fmt.Fprintf(w, "Deleted %d/%d rate limit entr(ies)\n", r.Deleted, r.Matched)
	}
	return err
}

func init() {
	rateLimitCmd.AddCommand(newRateLimitListCmd(), newRateLimitResetCmd())
	rootCmd.AddCommand(rateLimitCmd)
}
