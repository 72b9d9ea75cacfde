package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sitecheck/sitecheck/internal/core"
)

// DefaultMaxFileSize is the upload size limit applied when none is configured.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

var (
	// ErrFileTooLarge is returned when a file exceeds the size limit.
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedFormat is returned for extensions other than csv, xlsx and xls.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrParse wraps any failure to read the file contents.
	ErrParse = errors.New("unable to parse file")
)

// Format identifies a supported tabular file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// Report describes the outcome of a parse.
type Report struct {
	Format     Format        `json:"format"`
	Candidates int           `json:"candidates"`
	Domains    []core.Domain `json:"domains"`
}

// Accepted returns the number of distinct valid domains.
func (r Report) Accepted() int {
	return len(r.Domains)
}

// DetectFormat maps a filename to a Format by extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// CheckSize rejects sizes above limit. A non-positive limit uses DefaultMaxFileSize.
func CheckSize(size, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrFileTooLarge, size, limit)
	}
	return nil
}

// ParseFile applies the size guard from file metadata, then parses the file.
func ParseFile(ctx context.Context, path string, limit int64) (Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Report{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Report{}, fmt.Errorf("%s is a directory", path)
	}
	if err := CheckSize(info.Size(), limit); err != nil {
		return Report{}, err
	}
	if _, err := DetectFormat(path); err != nil {
		return Report{}, err
	}

	// #nosec G304 -- path is supplied by the operator
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() // nolint:errcheck // read-only file

	return Parse(ctx, filepath.Base(path), f)
}

// Parse reads the whole of r and extracts normalized, de-duplicated domains.
// The result is all-or-nothing: any parse failure discards partial output.
func Parse(ctx context.Context, name string, r io.Reader) (Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	format, err := DetectFormat(name)
	if err != nil {
		return Report{}, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return Report{}, fmt.Errorf("%w: read: %v", ErrParse, err)
	}
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	var candidates []string
	switch format {
	case FormatCSV:
		candidates = csvCandidates(data)
	case FormatXLSX:
		cells, err := xlsxCells(data)
		if err != nil {
			return Report{}, err
		}
		candidates = cellCandidates(cells)
	case FormatXLS:
		cells, err := xlsCells(data)
		if err != nil {
			return Report{}, err
		}
		candidates = cellCandidates(cells)
	}

	set := core.NewDomainSet()
	for _, candidate := range candidates {
		set.AddRaw(candidate)
	}

	return Report{
		Format:     format,
		Candidates: len(candidates),
		Domains:    set.List(),
	}, nil
}

// csvCandidates takes the first column of each non-header line. No quoting
// rules apply; text before the first comma is the candidate.
func csvCandidates(data []byte) []string {
	text := strings.ReplaceAll(string(bytes.TrimPrefix(data, []byte("\ufeff"))), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || isHeaderish(line) {
			continue
		}
		first, _, _ := strings.Cut(line, ",")
		first = strings.TrimSpace(first)
		if first == "" {
			continue
		}
		out = append(out, first)
	}
	return out
}

// cellCandidates keeps text cells that contain a dot, dropping header-ish
// and numeric cells.
func cellCandidates(cells []string) []string {
	out := make([]string, 0, len(cells))
	for _, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" || !strings.Contains(cell, ".") || isHeaderish(cell) || isNumeric(cell) {
			continue
		}
		out = append(out, cell)
	}
	return out
}

func isHeaderish(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "domain") || strings.Contains(lower, "url")
}

func isNumeric(text string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	return err == nil
}
