package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitecheck/sitecheck/internal/output"
)

type outputSink struct {
	writer io.Writer
	close  func() error
}

func nopSink(w io.Writer) *outputSink {
	return &outputSink{writer: w, close: func() error { return nil }}
}

// openSink opens path for writing, creating parent directories. An empty
// path or "-" writes to stdout.
func openSink(path string) (*outputSink, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return nopSink(os.Stdout), nil
	}
	// #nosec G301 -- report directories are shared with the invoking user's tools
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	file, err := os.Create(path) // #nosec G304 -- path is an operator-supplied CLI flag
	if err != nil {
		return nil, err
	}
	return &outputSink{writer: file, close: file.Close}, nil
}

func outputExtension(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	case output.FormatYAML:
		return "yaml"
	case output.FormatCSV:
		return "csv"
	default:
		return "txt"
	}
}

// adminOutput holds the output flags shared by the store maintenance
// commands, which only render table or json.
type adminOutput struct {
	format string
	out    string
	outDir string
}

func (o *adminOutput) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "output-format", string(output.FormatTable), "Output format: table|json")
	cmd.Flags().StringVar(&o.out, "out", "", "Write output to a file (default stdout)")
	cmd.Flags().StringVar(&o.outDir, "out-dir", "", "Write output to a directory")
}

func (o *adminOutput) parseFormat() (output.Format, error) {
	format, err := output.ParseFormat(o.format)
	if err != nil {
		return "", err
	}
	if format != output.FormatJSON && format != output.FormatTable {
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
	return format, nil
}

// open resolves --out or --out-dir. Under --out-dir the file is named
// <name>.<ext>; with neither flag the command's stdout is used.
func (o *adminOutput) open(cmd *cobra.Command, name string, format output.Format) (*outputSink, error) {
	out, dir := strings.TrimSpace(o.out), strings.TrimSpace(o.outDir)
	switch {
	case out != "" && dir != "":
		return nil, errors.New("--out and --out-dir are mutually exclusive")
	case dir != "":
		return openSink(filepath.Join(dir, name+"."+outputExtension(format)))
	case out != "":
		return openSink(out)
	default:
		return nopSink(cmd.OutOrStdout()), nil
	}
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
