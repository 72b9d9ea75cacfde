package core

import "time"

// BatchReport is the outcome of checking a domain list in one pass.
type BatchReport struct {
	Results     []*CheckResult `json:"results" yaml:"results"`
	Summary     Summary        `json:"summary" yaml:"summary"`
	Strategy    string         `json:"strategy" yaml:"strategy"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time      `json:"completed_at" yaml:"completed_at"`
}

// Duration returns how long the pass took.
func (b *BatchReport) Duration() time.Duration {
	if b == nil || b.CompletedAt.Before(b.StartedAt) {
		return 0
	}
	return b.CompletedAt.Sub(b.StartedAt)
}
