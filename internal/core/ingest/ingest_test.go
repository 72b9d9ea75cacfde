package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sitecheck/sitecheck/internal/core"
)

func TestParseCSVSkipsHeaderAndInvalidLines(t *testing.T) {
	input := strings.Join([]string{"Domain,Status", "google.com,200", "bad", "x.com,404"}, "\n")

	report, err := Parse(context.Background(), "sites.csv", strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, FormatCSV, report.Format)
	require.Equal(t, []core.Domain{"google.com", "x.com"}, report.Domains)
	require.Equal(t, 3, report.Candidates)
}

func TestParseCSVNormalizesAndDeduplicates(t *testing.T) {
	input := "https://Example.com/\r\nexample.com\r\n\r\nhttp://Example.com,foo\r\n  other.org  \r\n"

	report, err := Parse(context.Background(), "list.CSV", strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []core.Domain{"Example.com", "example.com", "other.org"}, report.Domains)
}

func TestParseUnsupportedExtension(t *testing.T) {
	_, err := Parse(context.Background(), "list.txt", strings.NewReader("a.com"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseXLSX(t *testing.T) {
	book := excelize.NewFile()
	t.Cleanup(func() { _ = book.Close() })

	cells := map[string]any{
		"A1": "Website URL",
		"B1": "Notes",
		"A2": "alpha.com",
		"B2": "gamma.net",
		"A3": 3.14,
		"B3": "https://beta.io/",
		"A4": "no-dot",
	}
	for axis, value := range cells {
		require.NoError(t, book.SetCellValue("Sheet1", axis, value))
	}
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	report, err := Parse(context.Background(), "sites.xlsx", buf)
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, report.Format)
	require.Equal(t, []core.Domain{"alpha.com", "gamma.net", "beta.io"}, report.Domains)
}

func TestParseXLSXReadsEverySheet(t *testing.T) {
	book := excelize.NewFile()
	t.Cleanup(func() { _ = book.Close() })

	_, err := book.NewSheet("Archive")
	require.NoError(t, err)
	require.NoError(t, book.SetCellValue("Sheet1", "A1", "alpha.com"))
	require.NoError(t, book.SetCellValue("Archive", "A1", "beta.com"))
	require.NoError(t, book.SetCellValue("Archive", "B2", "alpha.com"))
	buf, err := book.WriteToBuffer()
	require.NoError(t, err)

	report, err := Parse(context.Background(), "sites.xlsx", buf)
	require.NoError(t, err)
	require.Equal(t, []core.Domain{"alpha.com", "beta.com"}, report.Domains)
	require.Equal(t, 3, report.Candidates)
}

// testdata/sites.xls holds two sheets. "Sites" has a header row, a numeric
// cell, a value without a dot, a skipped row index and a URL; "More" has a
// single row.
func TestParseXLSFixture(t *testing.T) {
	report, err := ParseFile(context.Background(), filepath.Join("testdata", "sites.xls"), 0)
	require.NoError(t, err)
	require.Equal(t, FormatXLS, report.Format)
	require.Equal(t, []core.Domain{"alpha.example.com", "beta.example.org", "gamma.example.net"}, report.Domains)
	require.Equal(t, 3, report.Candidates)
}

func TestParseCorruptSpreadsheetIsAllOrNothing(t *testing.T) {
	for _, name := range []string{"broken.xlsx", "broken.xls"} {
		t.Run(name, func(t *testing.T) {
			report, err := Parse(context.Background(), name, strings.NewReader("definitely not a workbook"))
			require.ErrorIs(t, err, ErrParse)
			require.Empty(t, report.Domains)
		})
	}
}

func TestCheckSize(t *testing.T) {
	require.NoError(t, CheckSize(DefaultMaxFileSize, 0))
	require.ErrorIs(t, CheckSize(DefaultMaxFileSize+1, 0), ErrFileTooLarge)
	require.ErrorIs(t, CheckSize(11, 10), ErrFileTooLarge)
}

func TestParseFileRejectsOversizeBeforeReading(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a.com\n", 10)), 0o600))

	_, err := ParseFile(context.Background(), path, 8)
	require.ErrorIs(t, err, ErrFileTooLarge)

	report, err := ParseFile(context.Background(), path, 0)
	require.NoError(t, err)
	require.Equal(t, []core.Domain{"a.com"}, report.Domains)
}
