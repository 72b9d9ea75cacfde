package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/session"
	"github.com/sitecheck/sitecheck/internal/metrics"
	"github.com/sitecheck/sitecheck/internal/observability"
	"github.com/sitecheck/sitecheck/internal/output"
	"github.com/sitecheck/sitecheck/internal/view"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a spreadsheet to the status-check service",
	Long: `Send a .csv, .xlsx or .xls file to the status-check service, which
extracts the domains and checks them in one call. The local size guard runs
before anything is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().String("service-url", "", "Status-check service base URL")
	uploadCmd.Flags().String("output", "", "Also render the results: table, json, markdown, yaml, csv")
	uploadCmd.Flags().String("export", "", "Write the CSV report; without a value a dated filename is used")
	uploadCmd.Flags().Lookup("export").NoOptDefVal = exportAuto
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := currentConfig(ctx)
	if err != nil {
		return err
	}
	cfg, err = applyCheckFlags(cmd, cfg)
	if err != nil {
		return err
	}

	sess := &session.Session{
		Uploader:    serviceClient(cfg),
		MaxFileSize: cfg.Ingest.MaxFileSize,
		Logger:      observability.CLILogger,
	}

	report, err := sess.Upload(ctx, args[0])
	metrics.RecordBatch("upload", len(sess.Domains()), err == nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := writeUploadSummary(out, report); err != nil {
		return err
	}

	state := view.ViewState{Page: 1, PageSize: cfg.View.PageSize}
	if raw := mustString(cmd, "output"); raw != "" {
		format, err := output.ParseFormat(raw)
		if err != nil {
			return err
		}
		rendered, err := output.NewFormatter(format).Format(output.Report{
			Page:     sess.View(state),
			Summary:  sess.Summary(),
			Strategy: report.Strategy,
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, rendered); err != nil {
			return err
		}
	}

	if exportPath := mustString(cmd, "export"); exportPath != "" {
		return exportReport(sess, state, exportPath, false, observability.CLILogger)
	}
	return nil
}

func writeUploadSummary(w io.Writer, report *core.BatchReport) error {
	_, err := fmt.Fprintf(w, "Successfully processed %d URLs. Active: %d, Errors: %d\n",
		len(report.Results), report.Summary.Active(), report.Summary.Errors())
	return err
}
