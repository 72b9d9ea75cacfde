package core

import "time"

// RateLimitState is the persisted request window of one outbound endpoint.
type RateLimitState struct {
	RequestCount int        `json:"request_count"`
	WindowStart  time.Time  `json:"window_start"`
	BackoffUntil *time.Time `json:"backoff_until,omitempty"`
	Last429At    *time.Time `json:"last_429_at,omitempty"`
}

// Backoff reports how long the endpoint must still be left alone after a
// 429, or zero.
func (s RateLimitState) Backoff(now time.Time) time.Duration {
	if s.BackoffUntil == nil || !now.Before(*s.BackoffUntil) {
		return 0
	}
	return s.BackoffUntil.Sub(now)
}
