package output

import (
	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// Format renders the report as YAML.
func (f *YAMLFormatter) Format(report Report) (string, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
