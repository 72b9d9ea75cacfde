package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sitecheck/sitecheck/internal/core"
)

// DefaultPageSize is used when a ViewState carries no page size.
const DefaultPageSize = 10

// StatusClass buckets results by HTTP status class.
type StatusClass string

const (
	ClassAll             StatusClass = ""
	ClassSuccess         StatusClass = "success"
	ClassRedirect        StatusClass = "redirect"
	ClassClientError     StatusClass = "client-error"
	ClassServerError     StatusClass = "server-error"
	ClassConnectionError StatusClass = "connection-error"
)

// ParseStatusClass validates a status filter name. "all" and "" mean no filter.
func ParseStatusClass(value string) (StatusClass, error) {
	switch c := StatusClass(strings.ToLower(strings.TrimSpace(value))); c {
	case "", "all":
		return ClassAll, nil
	case ClassSuccess, ClassRedirect, ClassClientError, ClassServerError, ClassConnectionError:
		return c, nil
	default:
		return "", fmt.Errorf("unknown status filter %q", value)
	}
}

// SortKey names the column results are ordered by.
type SortKey string

const (
	SortNone         SortKey = ""
	SortDomain       SortKey = "domain"
	SortStatus       SortKey = "status"
	SortMessage      SortKey = "message"
	SortResponseTime SortKey = "response_time"
	SortCategory     SortKey = "category"
	SortCheckedAt    SortKey = "checked_at"
)

// ParseSortKey validates a sort key name.
func ParseSortKey(value string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(value))); k {
	case SortNone, SortDomain, SortStatus, SortMessage, SortResponseTime, SortCategory, SortCheckedAt:
		return k, nil
	case "time", "response-time":
		return SortResponseTime, nil
	case "status_code", "status-code":
		return SortStatus, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", value)
	}
}

// ViewState is the transient presentation state over a result set. It is a
// value type; the With methods return modified copies.
type ViewState struct {
	Search       string
	StatusFilter StatusClass
	Category     core.Category
	SortKey      SortKey
	Descending   bool
	Page         int
	PageSize     int
	Selected     map[core.Domain]bool
}

// WithSearch sets the search term and resets to the first page.
func (v ViewState) WithSearch(term string) ViewState {
	v.Search = term
	v.Page = 1
	return v
}

// WithStatusFilter sets the status-class filter and resets to the first page.
func (v ViewState) WithStatusFilter(class StatusClass) ViewState {
	v.StatusFilter = class
	v.Page = 1
	return v
}

// WithCategory sets the category filter and resets to the first page.
func (v ViewState) WithCategory(category core.Category) ViewState {
	v.Category = category
	v.Page = 1
	return v
}

// WithSort selects a sort key. Choosing the current key again flips direction.
func (v ViewState) WithSort(key SortKey) ViewState {
	if v.SortKey == key {
		v.Descending = !v.Descending
		return v
	}
	v.SortKey = key
	v.Descending = false
	return v
}

// WithPage moves to page n. Apply clamps out-of-range pages.
func (v ViewState) WithPage(n int) ViewState {
	v.Page = n
	return v
}

// WithSelected toggles selection of d.
func (v ViewState) WithSelected(d core.Domain, selected bool) ViewState {
	next := make(map[core.Domain]bool, len(v.Selected)+1)
	for k, val := range v.Selected {
		if val {
			next[k] = true
		}
	}
	if selected {
		next[d] = true
	} else {
		delete(next, d)
	}
	v.Selected = next
	return v
}

// SelectedDomains returns the selected domains that are present in results,
// in result order.
func (v ViewState) SelectedDomains(results []*core.CheckResult) []core.Domain {
	out := make([]core.Domain, 0, len(v.Selected))
	for _, r := range results {
		if r != nil && v.Selected[r.Domain] {
			out = append(out, r.Domain)
		}
	}
	return out
}

// Page is one page of filtered, sorted results.
type Page struct {
	Rows      []*core.CheckResult `json:"rows"`
	Total     int                 `json:"total"`
	Filtered  int                 `json:"filtered"`
	Page      int                 `json:"page"`
	PageCount int                 `json:"page_count"`
	PageSize  int                 `json:"page_size"`
}

// Apply derives the visible page from results and state. It does not modify
// its inputs.
func Apply(results []*core.CheckResult, state ViewState) Page {
	filtered := Filter(results, state)
	Sort(filtered, state.SortKey, state.Descending)

	size := state.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	pageCount := (len(filtered) + size - 1) / size
	page := state.Page
	if page > pageCount {
		page = pageCount
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * size
	end := start + size
	if start > len(filtered) {
		start = len(filtered)
	}
	if end > len(filtered) {
		end = len(filtered)
	}

	return Page{
		Rows:      filtered[start:end],
		Total:     len(results),
		Filtered:  len(filtered),
		Page:      page,
		PageCount: pageCount,
		PageSize:  size,
	}
}

// Filter returns the results matching every active predicate, in input order.
func Filter(results []*core.CheckResult, state ViewState) []*core.CheckResult {
	term := strings.ToLower(strings.TrimSpace(state.Search))
	out := make([]*core.CheckResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(string(r.Domain)), term) &&
			!strings.Contains(strings.ToLower(r.Message), term) {
			continue
		}
		if !MatchesClass(r, state.StatusFilter) {
			continue
		}
		if state.Category != "" && r.Category != state.Category {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MatchesClass reports whether r falls in the status class.
func MatchesClass(r *core.CheckResult, class StatusClass) bool {
	switch class {
	case ClassAll:
		return true
	case ClassSuccess:
		return r.Status.Class() == 2
	case ClassRedirect:
		return r.Status.Class() == 3
	case ClassClientError:
		return r.Status.Class() == 4
	case ClassServerError:
		return r.Status.Class() == 5
	case ClassConnectionError:
		return r.Category == core.CategoryConnectionError
	default:
		return false
	}
}

// Sort orders results in place, stably, by key. Missing response times and
// non-numeric statuses compare as zero.
func Sort(results []*core.CheckResult, key SortKey, descending bool) {
	if key == SortNone {
		return
	}
	less := lessFunc(key)
	sort.SliceStable(results, func(i, j int) bool {
		if descending {
			return less(results[j], results[i])
		}
		return less(results[i], results[j])
	})
}

func lessFunc(key SortKey) func(a, b *core.CheckResult) bool {
	switch key {
	case SortDomain:
		return func(a, b *core.CheckResult) bool {
			return strings.ToLower(string(a.Domain)) < strings.ToLower(string(b.Domain))
		}
	case SortStatus:
		return func(a, b *core.CheckResult) bool { return statusValue(a) < statusValue(b) }
	case SortMessage:
		return func(a, b *core.CheckResult) bool { return a.Message < b.Message }
	case SortResponseTime:
		return func(a, b *core.CheckResult) bool { return a.ResponseTime() < b.ResponseTime() }
	case SortCategory:
		return func(a, b *core.CheckResult) bool { return a.Category < b.Category }
	case SortCheckedAt:
		return func(a, b *core.CheckResult) bool { return a.CheckedAt.Before(b.CheckedAt) }
	default:
		return func(a, b *core.CheckResult) bool { return false }
	}
}

func statusValue(r *core.CheckResult) int {
	if r.Status.IsNumeric() {
		return r.Status.Code
	}
	return 0
}
