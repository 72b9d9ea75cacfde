package output

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// Format renders the report page as a table with a summary footer.
func (f *TableFormatter) Format(report Report) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Domain", "Status", "Message", "Time", "Category", "Checked"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Message", WidthMax: 48},
		{Name: "Time", Align: text.AlignRight},
	})

	for _, r := range report.Page.Rows {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			string(r.Domain),
			r.Status.String(),
			r.Message,
			responseTimeLabel(r),
			string(r.Category),
			checkedAtLabel(r),
		})
	}

	if report.Summary.Total > 0 {
		t.AppendFooter(table.Row{
			pageLine(report.Page),
			"",
			SummaryLine(report.Summary),
			"",
			"",
			"",
		})
	}

	return t.Render(), nil
}
