package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/view"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatYAML     Format = "yaml"
	FormatCSV      Format = "csv"
)

// Report is what a formatter renders: one page of the result view plus the
// summary of the whole result set.
type Report struct {
	Page     view.Page    `json:"page" yaml:"page"`
	Summary  core.Summary `json:"summary" yaml:"summary"`
	Strategy string       `json:"strategy,omitempty" yaml:"strategy,omitempty"`
}

// Formatter renders a report.
type Formatter interface {
	Format(report Report) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	case string(FormatCSV):
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TableFormatter{}
	}
}

// SummaryLine renders the category counts in one line, e.g.
// "3 checked: 2 active, 1 error".
func SummaryLine(summary core.Summary) string {
	parts := make([]string, 0, len(summary.Counts))
	for _, category := range summary.Categories() {
		parts = append(parts, fmt.Sprintf("%d %s", summary.Counts[category], category))
	}
	line := fmt.Sprintf("%d checked", summary.Total)
	if len(parts) > 0 {
		line += ": " + strings.Join(parts, ", ")
	}
	return line
}

func pageLine(page view.Page) string {
	if page.PageCount <= 1 {
		return fmt.Sprintf("%d of %d shown", page.Filtered, page.Total)
	}
	return fmt.Sprintf("page %d/%d, %d of %d shown", page.Page, page.PageCount, page.Filtered, page.Total)
}

func responseTimeLabel(r *core.CheckResult) string {
	if r.ResponseTimeSeconds == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*r.ResponseTimeSeconds, 'f', 3, 64) + "s"
}

func checkedAtLabel(r *core.CheckResult) string {
	if r.CheckedAt.IsZero() {
		return ""
	}
	return r.CheckedAt.Local().Format(time.DateTime)
}
