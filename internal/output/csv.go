package output

import (
	"strings"

	"github.com/sitecheck/sitecheck/internal/view"
)

// CSVFormatter renders the page rows in the export format.
type CSVFormatter struct{}

// Format renders the report page as comma-delimited text.
func (f *CSVFormatter) Format(report Report) (string, error) {
	var sb strings.Builder
	if _, err := view.Export(&sb, report.Page.Rows); err != nil {
		return "", err
	}
	return sb.String(), nil
}
