package view

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
)

// ExportHeader is the fixed column order of the report.
var ExportHeader = []string{"Domain", "Status Code", "Message", "Response Time (s)", "Category", "Checked At"}

// Export writes results as comma-delimited text. Fields are not quoted;
// commas inside messages become semicolons so columns stay aligned.
func Export(w io.Writer, results []*core.CheckResult) (int, error) {
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(strings.Join(ExportHeader, ",")); err != nil {
		return 0, err
	}

	rows := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if _, err := buf.WriteString("\n" + strings.Join(ExportRow(r), ",")); err != nil {
			return rows, err
		}
		rows++
	}
	if err := buf.WriteByte('\n'); err != nil {
		return rows, err
	}
	return rows, buf.Flush()
}

// ExportRow renders one result in export column order.
func ExportRow(r *core.CheckResult) []string {
	responseTime := "N/A"
	if r.ResponseTimeSeconds != nil {
		responseTime = strconv.FormatFloat(*r.ResponseTimeSeconds, 'f', -1, 64)
	}
	category := string(r.Category)
	if category == "" {
		category = "N/A"
	}
	checkedAt := ""
	if !r.CheckedAt.IsZero() {
		checkedAt = r.CheckedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		sanitize(string(r.Domain)),
		sanitize(r.Status.String()),
		sanitize(r.Message),
		responseTime,
		sanitize(category),
		checkedAt,
	}
}

// ExportFilename returns the download name for a report generated at now.
func ExportFilename(filtered bool, now time.Time) string {
	date := now.UTC().Format("2006-01-02")
	if filtered {
		return fmt.Sprintf("filtered-website-status-%s.csv", date)
	}
	return fmt.Sprintf("website-status-report-%s.csv", date)
}

func sanitize(value string) string {
	value = strings.ReplaceAll(value, ",", ";")
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value)
}
