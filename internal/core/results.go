package core

import (
	"sort"
	"time"
)

// Summary holds aggregate counts keyed by category. It is derived from a
// result set or supplied wholesale by the status service.
type Summary struct {
	Counts      map[Category]int `json:"category_counts" yaml:"category_counts"`
	Total       int              `json:"total" yaml:"total"`
	ProcessedAt time.Time        `json:"processed_at" yaml:"processed_at"`
}

// Active returns the count of active results.
func (s Summary) Active() int { return s.Counts[CategoryActive] }

// Errors returns the count of error results.
func (s Summary) Errors() int { return s.Counts[CategoryError] }

// Redirects returns the count of redirect results.
func (s Summary) Redirects() int { return s.Counts[CategoryRedirect] }

// ConnectionErrors returns the count of results that never got a response.
func (s Summary) ConnectionErrors() int { return s.Counts[CategoryConnectionError] }

// Categories returns the categories present in the summary, sorted.
func (s Summary) Categories() []Category {
	out := make([]Category, 0, len(s.Counts))
	for c := range s.Counts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Summarize derives category counts from results.
func Summarize(results []*CheckResult, processedAt time.Time) Summary {
	summary := Summary{Counts: make(map[Category]int), ProcessedAt: processedAt}
	for _, r := range results {
		if r == nil {
			continue
		}
		category := r.Category
		if category == "" {
			category = CategoryUnknown
		}
		summary.Counts[category]++
		summary.Total++
	}
	return summary
}

// ResultSet holds results keyed by domain while preserving insertion order.
// It is not safe for concurrent use; callers serialize access.
type ResultSet struct {
	order []Domain
	byKey map[Domain]*CheckResult
}

// NewResultSet builds a set from results. A later result for the same
// domain replaces an earlier one in place.
func NewResultSet(results []*CheckResult) *ResultSet {
	set := &ResultSet{}
	for _, r := range results {
		set.Put(r)
	}
	return set
}

// Put inserts or replaces the result for r.Domain. It reports whether an
// existing result was replaced.
func (s *ResultSet) Put(r *CheckResult) bool {
	if r == nil {
		return false
	}
	if s.byKey == nil {
		s.byKey = make(map[Domain]*CheckResult)
	}
	_, exists := s.byKey[r.Domain]
	s.byKey[r.Domain] = r
	if !exists {
		s.order = append(s.order, r.Domain)
	}
	return exists
}

// Replace swaps the result for r.Domain only if one is already present.
func (s *ResultSet) Replace(r *CheckResult) bool {
	if r == nil {
		return false
	}
	if _, ok := s.byKey[r.Domain]; !ok {
		return false
	}
	s.byKey[r.Domain] = r
	return true
}

// Get returns the result for d.
func (s *ResultSet) Get(d Domain) (*CheckResult, bool) {
	r, ok := s.byKey[d]
	return r, ok
}

// Remove deletes the result for d.
func (s *ResultSet) Remove(d Domain) bool {
	if _, ok := s.byKey[d]; !ok {
		return false
	}
	delete(s.byKey, d)
	for i, existing := range s.order {
		if existing == d {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of results.
func (s *ResultSet) Len() int {
	return len(s.order)
}

// List returns results in insertion order.
func (s *ResultSet) List() []*CheckResult {
	out := make([]*CheckResult, 0, len(s.order))
	for _, d := range s.order {
		out = append(out, s.byKey[d])
	}
	return out
}
