package output

import (
	"bytes"
	"encoding/json"
)

// JSONFormatter renders the report as JSON. HTML characters in status
// messages are left unescaped.
type JSONFormatter struct {
	Indent bool
}

// Format renders the report as JSON.
func (f *JSONFormatter) Format(report Report) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
