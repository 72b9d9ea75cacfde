package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/config"
	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/checker"
	"github.com/sitecheck/sitecheck/internal/core/engine"
	"github.com/sitecheck/sitecheck/internal/core/session"
	"github.com/sitecheck/sitecheck/internal/core/store"
	"github.com/sitecheck/sitecheck/internal/metrics"
	"github.com/sitecheck/sitecheck/internal/observability"
	"github.com/sitecheck/sitecheck/internal/output"
	"github.com/sitecheck/sitecheck/internal/view"
)

// exportAuto asks --export to pick the dated default filename.
const exportAuto = "auto"

var checkCmd = &cobra.Command{
	Use:   "check [domain...]",
	Short: "Check website availability",
	Long: `Check the HTTP status of every domain given as an argument, in a plain
list (--list, one per line, "-" for stdin) or in a CSV/Excel file (--file).

Domains are checked by the status-check service in one call (strategy
"server") or probed locally in paced batches (strategy "paced").`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	registerCheckFlags(checkCmd)
}

func registerCheckFlags(cmd *cobra.Command) {
	cmd.Flags().String("list", "", "Read domains from a text file, one per line (- for stdin)")
	cmd.Flags().String("file", "", "Read domains from a .csv, .xlsx or .xls file")
	cmd.Flags().String("strategy", "", "Check strategy: server, paced (default from config)")
	cmd.Flags().String("prober", "", "Per-domain prober for paced checks and retries: service, direct, relay")
	cmd.Flags().String("service-url", "", "Status-check service base URL")
	cmd.Flags().Bool("retry-failed", false, "Retry every Connection Error once after the pass")

	cmd.Flags().String("search", "", "Only show domains containing this text")
	cmd.Flags().String("status", "", "Only show a status class: success, redirect, client-error, server-error, connection-error")
	cmd.Flags().String("category", "", "Only show one category")
	cmd.Flags().String("sort", "", "Sort by: domain, status, message, time, category, checked_at")
	cmd.Flags().Bool("desc", false, "Sort descending")
	cmd.Flags().Int("page", 1, "Page to show")
	cmd.Flags().Int("page-size", 0, "Rows per page (default from config)")

	cmd.Flags().String("output", "table", "Output format: table, json, markdown, yaml, csv")
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("export", "", "Write the CSV report; without a value a dated filename is used")
	cmd.Flags().Lookup("export").NoOptDefVal = exportAuto
	cmd.Flags().Bool("filtered-export", false, "Export only the rows matching the view filters")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now()
	logger := observability.CLILogger

	cfg, err := currentConfig(ctx)
	if err != nil {
		return err
	}
	cfg, err = applyCheckFlags(cmd, cfg)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(mustString(cmd, "output"))
	if err != nil {
		return err
	}
	state, err := viewStateFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	db, err := openCheckStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close() // nolint:errcheck // best-effort cleanup
	}

	orchestrator, err := buildOrchestrator(cfg, db, logger)
	if err != nil {
		return err
	}
	sess := &session.Session{
		Runner:      orchestrator,
		Uploader:    serviceClient(cfg),
		MaxFileSize: cfg.Ingest.MaxFileSize,
		Logger:      logger,
	}

	if err := addDomains(ctx, cmd, sess, args, logger); err != nil {
		return err
	}

	report, err := sess.CheckAll(ctx)
	metrics.RecordBatch(string(orchestrator.Strategy), len(sess.Domains()), err == nil)
	if err != nil {
		return err
	}

	if mustBool(cmd, "retry-failed") {
		failed := sess.FailedDomains()
		if len(failed) > 0 {
			retried, err := sess.RetrySelected(ctx, failed)
			if err != nil {
				return err
			}
			if logger != nil {
				logger.Info("Retried failed domains", zap.Int("failed", len(failed)), zap.Int("retried", len(retried)))
			}
		}
	}

	rendered, err := output.NewFormatter(format).Format(output.Report{
		Page:     sess.View(state),
		Summary:  sess.Summary(),
		Strategy: report.Strategy,
	})
	if err != nil {
		return err
	}

	sink, err := openSink(mustString(cmd, "out"))
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()
	if rendered != "" {
		if _, err := fmt.Fprintln(sink.writer, rendered); err != nil {
			return err
		}
	}

	if exportPath := mustString(cmd, "export"); exportPath != "" {
		if err := exportReport(sess, state, exportPath, mustBool(cmd, "filtered-export"), logger); err != nil {
			return err
		}
	}

	if format == output.FormatTable {
		logThroughput(len(sess.Results()), startedAt)
	}
	return nil
}

// applyCheckFlags layers command flags over a copy of cfg.
func applyCheckFlags(cmd *cobra.Command, cfg *config.Config) (*config.Config, error) {
	next := *cfg
	if v := strings.TrimSpace(mustString(cmd, "strategy")); v != "" {
		next.Checker.Strategy = v
	}
	if v := strings.TrimSpace(mustString(cmd, "prober")); v != "" {
		next.Checker.Prober = v
	}
	if v := strings.TrimSpace(mustString(cmd, "service-url")); v != "" {
		next.Service.BaseURL = v
	}
	if _, err := engine.ParseStrategy(next.Checker.Strategy); err != nil {
		return nil, err
	}
	return &next, nil
}

func viewStateFromFlags(cmd *cobra.Command, cfg *config.Config) (view.ViewState, error) {
	state := view.ViewState{Page: 1, PageSize: cfg.View.PageSize}
	if size := mustInt(cmd, "page-size"); size > 0 {
		state.PageSize = size
	}

	state = state.WithSearch(mustString(cmd, "search"))
	if raw := mustString(cmd, "status"); raw != "" {
		class, err := view.ParseStatusClass(raw)
		if err != nil {
			return view.ViewState{}, err
		}
		state = state.WithStatusFilter(class)
	}
	if raw := strings.TrimSpace(mustString(cmd, "category")); raw != "" {
		state = state.WithCategory(core.Category(raw))
	}
	if raw := mustString(cmd, "sort"); raw != "" {
		key, err := view.ParseSortKey(raw)
		if err != nil {
			return view.ViewState{}, err
		}
		state = state.WithSort(key)
	}
	state.Descending = mustBool(cmd, "desc")
	return state.WithPage(mustInt(cmd, "page")), nil
}

// openCheckStore opens the store only for the local probers, which keep
// rate limit windows and cached probes there.
func openCheckStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	prober := strings.ToLower(strings.TrimSpace(cfg.Checker.Prober))
	if prober == "" || prober == checker.ProberService {
		return nil, nil
	}
	return openStore(ctx, cfg)
}

func addDomains(ctx context.Context, cmd *cobra.Command, sess *session.Session, args []string, logger *logging.Logger) error {
	listPath := mustString(cmd, "list")
	domains, err := resolveDomains(args, listPath)
	if err != nil {
		return err
	}
	for _, raw := range domains {
		if _, _, err := sess.AddDomain(raw); err != nil && logger != nil {
			logger.Warn("Skipping invalid domain", zap.String("input", raw))
		}
	}

	if filePath := strings.TrimSpace(mustString(cmd, "file")); filePath != "" {
		parsed, added, err := sess.Ingest(ctx, filePath)
		if err != nil {
			return err
		}
		metrics.RecordIngest(string(parsed.Format), parsed.Accepted())
		if logger != nil {
			logger.Debug("Loaded domains from file",
				zap.String("file", filePath),
				zap.Int("accepted", parsed.Accepted()),
				zap.Int("added", added))
		}
	}

	if len(sess.Domains()) == 0 {
		return errors.New("no domains to check: pass domains as arguments, --list or --file")
	}
	return nil
}

func exportReport(sess *session.Session, state view.ViewState, target string, filtered bool, logger *logging.Logger) error {
	name := target
	if name == exportAuto {
		name = view.ExportFilename(filtered, time.Now())
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	_, rows, err := sess.Export(f, state, filtered)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if logger != nil {
		logger.Info("Exported report", zap.String("path", name), zap.Int("rows", rows))
	}
	return nil
}

func logThroughput(count int, startedAt time.Time) {
	if count <= 0 || observability.CLILogger == nil {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(count) / elapsed.Seconds()
	observability.CLILogger.Info(
		"Check throughput",
		zap.Int("checks", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", rate),
	)
}

func mustString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}

func mustBool(cmd *cobra.Command, name string) bool {
	value, _ := cmd.Flags().GetBool(name)
	return value
}

func mustInt(cmd *cobra.Command, name string) int {
	value, _ := cmd.Flags().GetInt(name)
	return value
}
