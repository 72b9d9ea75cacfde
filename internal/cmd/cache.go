package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sitecheck/sitecheck/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the probe cache",
}

func newCachePurgeCmd() *cobra.Command {
	opts := &adminOutput{}
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired probe cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			purged, err := db.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			sink, err := opts.open(cmd, "cache.purge", format)
			if err != nil {
				return err
			}
			defer func() { _ = sink.close() }()
			return writeCachePurgeResult(format, sink.writer, purged)
		},
	}
	opts.bind(cmd)
	return cmd
}

func writeCachePurgeResult(format output.Format, w io.Writer, purged int64) error {
	if format == output.FormatJSON {
		return writeIndentedJSON(w, map[string]int64{"purged": purged})
	}
	_, err := fmt.Fprintf(w, "Purged %d expired cache entr(ies)\n", purged)
	return err
}

func init() {
	cacheCmd.AddCommand(newCachePurgeCmd())
	rootCmd.AddCommand(cacheCmd)
}
