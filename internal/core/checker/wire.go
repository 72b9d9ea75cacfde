package checker

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
)

// BulkRequest is the body of POST /api/check-bulk.
type BulkRequest struct {
	Domains []string `json:"domains"`
}

// SingleRequest is the body of POST /api/check-single.
type SingleRequest struct {
	Domain string `json:"domain"`
}

// WireResult is one result as exchanged with the status service. Older
// service builds echo the probed URL instead of the domain.
type WireResult struct {
	Domain          string      `json:"domain,omitempty"`
	URL             string      `json:"url,omitempty"`
	StatusCode      core.Status `json:"status_code"`
	Message         string      `json:"message"`
	ResponseTimeSec *float64    `json:"response_time_sec"`
	Category        string      `json:"category"`
}

// Envelope is the response of the bulk, upload and (results only) single endpoints.
type Envelope struct {
	Results        []WireResult   `json:"results"`
	CategoryCounts map[string]int `json:"category_counts,omitempty"`
	ProcessedAt    string         `json:"processed_at,omitempty"`
}

// ErrorBody is the JSON error shape returned by the status service. The
// error member is either a plain string or an object carrying a message.
type ErrorBody struct {
	Message string          `json:"message,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Text returns the most specific message in the body.
func (b ErrorBody) Text() string {
	if msg := strings.TrimSpace(b.Message); msg != "" {
		return msg
	}
	if len(b.Error) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(b.Error, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b.Error, &nested); err == nil {
		return strings.TrimSpace(nested.Message)
	}
	return ""
}

var processedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// ParseProcessedAt reads the service timestamp, returning fallback if it is
// missing or unrecognised.
func ParseProcessedAt(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	for _, layout := range processedAtLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return fallback
}

func (w WireResult) unnamed() bool {
	return strings.TrimSpace(w.Domain) == "" && strings.TrimSpace(w.URL) == ""
}

// ToResult converts a wire result, stamping checkedAt.
func (w WireResult) ToResult(checkedAt time.Time) *core.CheckResult {
	name := strings.TrimSpace(w.Domain)
	if name == "" && strings.TrimSpace(w.URL) != "" {
		name = core.CleanURL(w.URL)
	}
	domain, ok := core.Normalize(name)
	if !ok {
		domain = core.Domain(name)
	}
	if domain == "" {
		domain = core.Domain(core.StatusLabelUnknown)
	}

	status := w.StatusCode
	if !status.IsNumeric() && status.Label == "" {
		status = core.Status{Label: core.StatusLabelUnknown}
	}

	message := w.Message
	if strings.TrimSpace(message) == "" {
		message = "No message"
	}

	category := core.Category(strings.TrimSpace(w.Category))
	if category == "" {
		category = core.CategoryUnknown
	}

	return &core.CheckResult{
		Domain:              domain,
		Status:              status,
		Message:             message,
		ResponseTimeSeconds: w.ResponseTimeSec,
		Category:            category,
		CheckedAt:           checkedAt,
	}
}

// FromResult converts a result to its wire form.
func FromResult(r *core.CheckResult) WireResult {
	if r == nil {
		return WireResult{}
	}
	return WireResult{
		Domain:          string(r.Domain),
		URL:             "https://" + string(r.Domain),
		StatusCode:      r.Status,
		Message:         r.Message,
		ResponseTimeSec: r.ResponseTimeSeconds,
		Category:        string(r.Category),
	}
}

// NewEnvelope builds the service response for a finished batch.
func NewEnvelope(report *core.BatchReport) Envelope {
	env := Envelope{Results: []WireResult{}, CategoryCounts: map[string]int{}}
	if report == nil {
		return env
	}
	for _, r := range report.Results {
		env.Results = append(env.Results, FromResult(r))
	}
	for category, count := range report.Summary.Counts {
		env.CategoryCounts[string(category)] = count
	}
	if !report.Summary.ProcessedAt.IsZero() {
		env.ProcessedAt = report.Summary.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return env
}

// Report converts a decoded envelope. Category counts from the service win;
// when absent they are derived from the results.
func (e Envelope) Report(now time.Time) *core.BatchReport {
	processedAt := ParseProcessedAt(e.ProcessedAt, now)

	results := make([]*core.CheckResult, 0, len(e.Results))
	unnamed := 0
	for _, w := range e.Results {
		result := w.ToResult(processedAt)
		// Results are keyed by domain; rows the service could not name each
		// get their own key so none is lost.
		if w.unnamed() {
			unnamed++
			result.Domain = core.Domain(fmt.Sprintf("%s-%d", core.StatusLabelUnknown, unnamed))
		}
		results = append(results, result)
	}

	summary := core.Summarize(results, processedAt)
	if len(e.CategoryCounts) > 0 {
		summary.Counts = make(map[core.Category]int, len(e.CategoryCounts))
		for category, count := range e.CategoryCounts {
			summary.Counts[core.Category(category)] = count
		}
	}

	return &core.BatchReport{
		Results:     results,
		Summary:     summary,
		StartedAt:   now,
		CompletedAt: processedAt,
	}
}
