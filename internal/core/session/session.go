package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/ingest"
	"github.com/sitecheck/sitecheck/internal/view"
)

// ErrUnknownDomain is returned when an operation names a domain the session
// does not hold.
var ErrUnknownDomain = errors.New("domain not in session")

// Runner runs a check pass and re-checks single domains.
type Runner interface {
	Run(ctx context.Context, domains []core.Domain) (*core.BatchReport, error)
	Retry(ctx context.Context, domain core.Domain) (*core.CheckResult, error)
}

// Uploader hands a spreadsheet to the status service for ingest and checking.
type Uploader interface {
	UploadFile(ctx context.Context, name string, r io.Reader) (*core.BatchReport, error)
}

// Session owns the domain list, the results keyed by domain and the summary.
// Every exported method is one logical mutation, serialized by a mutex.
type Session struct {
	Runner      Runner
	Uploader    Uploader
	MaxFileSize int64
	Logger      *logging.Logger
	Clock       func() time.Time

	mu      sync.Mutex
	domains core.DomainSet
	results core.ResultSet
	summary core.Summary
}

// AddDomain normalizes raw and appends it. Re-adding an existing domain is a
// no-op. An invalid input returns an error and changes nothing.
func (s *Session) AddDomain(raw string) (core.Domain, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := core.Normalize(raw)
	if !ok {
		return "", false, fmt.Errorf("invalid domain %q", raw)
	}
	return d, s.domains.Add(d), nil
}

// RemoveDomain drops a domain and its result.
func (s *Session) RemoveDomain(d core.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.domains.Remove(d) {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, d)
	}
	if s.results.Remove(d) {
		s.summary = core.Summarize(s.results.List(), s.now())
	}
	return nil
}

// RemoveSelected drops every selected domain and its result.
func (s *Session) RemoveSelected(selected []core.Domain) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, d := range selected {
		if s.domains.Remove(d) {
			removed++
		}
		s.results.Remove(d)
	}
	if removed > 0 {
		s.summary = core.Summarize(s.results.List(), s.now())
	}
	return removed
}

// Clear empties the session.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.domains.Clear()
	s.results = core.ResultSet{}
	s.summary = core.Summary{}
}

// Ingest parses a local file and appends its domains. The size guard runs
// before the file is opened; a parse failure leaves the session unchanged.
func (s *Session) Ingest(ctx context.Context, path string) (ingest.Report, int, error) {
	report, err := ingest.ParseFile(ctx, path, s.MaxFileSize)
	if err != nil {
		return ingest.Report{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, d := range report.Domains {
		if s.domains.Add(d) {
			added++
		}
	}
	if s.Logger != nil {
		s.Logger.Info("Ingested domains",
			zap.String("file", filepath.Base(path)),
			zap.Int("candidates", report.Candidates),
			zap.Int("accepted", report.Accepted()),
			zap.Int("added", added),
		)
	}
	return report, added, nil
}

// CheckAll runs a check pass over every domain and replaces the results and
// summary wholesale. On failure the previous results are kept.
func (s *Session) CheckAll(ctx context.Context) (*core.BatchReport, error) {
	if s.Runner == nil {
		return nil, errors.New("session has no check runner")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	domains := s.domains.List()
	if len(domains) == 0 {
		return nil, errors.New("no domains to check")
	}

	report, err := s.Runner.Run(ctx, domains)
	if err != nil {
		return nil, err
	}

	s.results = *core.NewResultSet(report.Results)
	s.summary = report.Summary
	return report, nil
}

// Upload sends a local spreadsheet to the status service. The size guard
// runs first; on success the domains, results and summary are replaced.
func (s *Session) Upload(ctx context.Context, path string) (*core.BatchReport, error) {
	if s.Uploader == nil {
		return nil, errors.New("session has no upload service")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := ingest.CheckSize(info.Size(), s.MaxFileSize); err != nil {
		return nil, err
	}
	if _, err := ingest.DetectFormat(path); err != nil {
		return nil, err
	}

	// #nosec G304 -- path is supplied by the operator
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() // nolint:errcheck // read-only file

	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.Uploader.UploadFile(ctx, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}

	s.domains.Clear()
	for _, r := range report.Results {
		s.domains.Add(r.Domain)
	}
	s.results = *core.NewResultSet(report.Results)
	s.summary = report.Summary
	return report, nil
}

// Retry re-checks one domain and replaces only its result.
func (s *Session) Retry(ctx context.Context, d core.Domain) (*core.CheckResult, error) {
	if s.Runner == nil {
		return nil, errors.New("session has no check runner")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results.Get(d); !ok {
		return nil, fmt.Errorf("%w: %s has no result to retry", ErrUnknownDomain, d)
	}

	result, err := s.Runner.Retry(ctx, d)
	if err != nil {
		return nil, err
	}
	result.Domain = d
	s.results.Replace(result)
	s.summary = core.Summarize(s.results.List(), s.now())
	return result, nil
}

// RetrySelected retries each domain in turn. It stops at the first error,
// keeping replacements already made.
func (s *Session) RetrySelected(ctx context.Context, selected []core.Domain) ([]*core.CheckResult, error) {
	out := make([]*core.CheckResult, 0, len(selected))
	for _, d := range selected {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		result, err := s.Retry(ctx, d)
		if err != nil {
			return out, err
		}
		out = append(out, result)
	}
	return out, nil
}

// Domains returns the domain list in insertion order.
func (s *Session) Domains() []core.Domain {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domains.List()
}

// Results returns the current results in insertion order.
func (s *Session) Results() []*core.CheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results.List()
}

// Summary returns the current summary.
func (s *Session) Summary() core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// FailedDomains returns domains whose result is a Connection Error.
func (s *Session) FailedDomains() []core.Domain {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Domain
	for _, r := range s.results.List() {
		if r.Category == core.CategoryConnectionError {
			out = append(out, r.Domain)
		}
	}
	return out
}

// View derives the visible page for state.
func (s *Session) View(state view.ViewState) view.Page {
	return view.Apply(s.Results(), state)
}

// Export writes the full report, or only rows matching state when filtered
// is set. It returns the suggested filename and the number of rows written.
func (s *Session) Export(w io.Writer, state view.ViewState, filtered bool) (string, int, error) {
	results := s.Results()
	if len(results) == 0 {
		return "", 0, errors.New("no results to export")
	}
	if filtered {
		results = view.Filter(results, state)
		view.Sort(results, state.SortKey, state.Descending)
	}
	rows, err := view.Export(w, results)
	return view.ExportFilename(filtered, s.now()), rows, err
}

func (s *Session) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
