package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category is a coarse classification of a check result. Values are opaque
// tags; the service may return tags beyond the ones declared here.
type Category string

const (
	CategoryActive          Category = "active"
	CategoryRedirect        Category = "redirect"
	CategoryError           Category = "error"
	CategoryConnectionError Category = "Connection Error"
	CategoryOther           Category = "other"
	CategoryUnknown         Category = "unknown"
)

// Status labels used when no numeric HTTP code is available.
const (
	StatusLabelError   = "ERROR"
	StatusLabelUnknown = "Unknown"
)

// Status is either a numeric HTTP status code or a label such as ERROR.
// It encodes to JSON as a number when a code is set and as a string otherwise.
type Status struct {
	Code  int
	Label string
}

// StatusCode returns a numeric status.
func StatusCode(code int) Status {
	return Status{Code: code}
}

// StatusError is the synthetic status for a failed probe.
func StatusError() Status {
	return Status{Label: StatusLabelError}
}

// IsNumeric reports whether the status carries an HTTP code.
func (s Status) IsNumeric() bool {
	return s.Label == "" && s.Code > 0
}

// Class returns the hundreds digit of a numeric status, or 0.
func (s Status) Class() int {
	if !s.IsNumeric() {
		return 0
	}
	return s.Code / 100
}

func (s Status) String() string {
	if s.Label != "" {
		return s.Label
	}
	if s.Code > 0 {
		return strconv.Itoa(s.Code)
	}
	return StatusLabelUnknown
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	if s.IsNumeric() {
		return []byte(strconv.Itoa(s.Code)), nil
	}
	return json.Marshal(s.String())
}

// MarshalYAML implements yaml.Marshaler.
func (s Status) MarshalYAML() (any, error) {
	if s.IsNumeric() {
		return s.Code, nil
	}
	return s.String(), nil
}

// UnmarshalJSON accepts numbers, numeric strings, labels and null.
func (s *Status) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Status{Label: StatusLabelUnknown}
		return nil
	}

	if data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*s = ParseStatus(label)
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("status_code: %w", err)
	}
	if number <= 0 {
		*s = Status{Label: StatusLabelUnknown}
		return nil
	}
	*s = Status{Code: int(number)}
	return nil
}

// ParseStatus converts a textual status into a Status.
func ParseStatus(value string) Status {
	value = strings.TrimSpace(value)
	if value == "" {
		return Status{Label: StatusLabelUnknown}
	}
	if code, err := strconv.Atoi(value); err == nil && code > 0 {
		return Status{Code: code}
	}
	return Status{Label: value}
}

// CheckResult is the outcome of probing one domain.
type CheckResult struct {
	CheckID             string    `json:"check_id,omitempty" yaml:"check_id,omitempty"`
	Domain              Domain    `json:"domain" yaml:"domain"`
	Status              Status    `json:"status_code" yaml:"status_code"`
	Message             string    `json:"message" yaml:"message"`
	ResponseTimeSeconds *float64  `json:"response_time_sec" yaml:"response_time_sec"`
	Category            Category  `json:"category" yaml:"category"`
	CheckedAt           time.Time `json:"checked_at" yaml:"checked_at"`
}

// ResponseTime returns the response time, treating a missing value as zero.
func (r *CheckResult) ResponseTime() float64 {
	if r == nil || r.ResponseTimeSeconds == nil {
		return 0
	}
	return *r.ResponseTimeSeconds
}

// Seconds returns a pointer to v, for populating ResponseTimeSeconds.
func Seconds(v float64) *float64 {
	return &v
}

// FailedResult builds the synthetic fail-soft result for a domain.
func FailedResult(domain Domain, message string, at time.Time) *CheckResult {
	return &CheckResult{
		Domain:    domain,
		Status:    StatusError(),
		Message:   message,
		Category:  CategoryConnectionError,
		CheckedAt: at,
	}
}

// CategoryForStatus classifies a locally probed HTTP status code.
func CategoryForStatus(code int) Category {
	switch {
	case code >= 200 && code < 300:
		return CategoryActive
	case code >= 300 && code < 400:
		return CategoryRedirect
	case code >= 400:
		return CategoryError
	default:
		return CategoryOther
	}
}
