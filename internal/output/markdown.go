package output

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders results as a markdown table.
type MarkdownFormatter struct{}

// Format renders the report as Markdown.
func (f *MarkdownFormatter) Format(report Report) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Website status\n\n")
	sb.WriteString("| Domain | Status | Message | Time | Category |\n")
	sb.WriteString("|--------|--------|---------|------|----------|\n")

	for _, r := range report.Page.Rows {
		if r == nil {
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
			escapeMarkdownCell(string(r.Domain)),
			escapeMarkdownCell(r.Status.String()),
			escapeMarkdownCell(r.Message),
			escapeMarkdownCell(responseTimeLabel(r)),
			escapeMarkdownCell(string(r.Category)),
		))
	}

	if report.Summary.Total > 0 {
		sb.WriteString(fmt.Sprintf("\n**Summary**: %s (%s)\n", SummaryLine(report.Summary), pageLine(report.Page)))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.ReplaceAll(value, "|", "\\|")
}
