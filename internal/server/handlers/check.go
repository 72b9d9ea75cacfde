package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/checker"
	"github.com/sitecheck/sitecheck/internal/core/ingest"
	apperrors "github.com/sitecheck/sitecheck/internal/errors"
	"github.com/sitecheck/sitecheck/internal/metrics"
)

const (
	// DefaultMaxDomains caps a single bulk request.
	DefaultMaxDomains = 1000

	maxJSONBody     = 1 << 20
	multipartMemory = 1 << 20
	uploadField     = "file"
)

// Checker probes domains on behalf of the HTTP API. *engine.PacedRunner
// satisfies it.
type Checker interface {
	Run(ctx context.Context, domains []core.Domain) ([]*core.CheckResult, error)
	ProbeOne(ctx context.Context, domain core.Domain) *core.CheckResult
}

// CheckHandler serves the bulk, single and file upload endpoints.
type CheckHandler struct {
	Checker     Checker
	MaxFileSize int64
	MaxDomains  int
	Logger      *logging.Logger
	Clock       func() time.Time
}

// CheckBulk handles POST /api/check-bulk.
func (h *CheckHandler) CheckBulk(w http.ResponseWriter, r *http.Request) {
	var req checker.BulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	if len(req.Domains) == 0 {
		apperrors.RespondWithError(w, r, apperrors.NewValidationError("domains must be a non-empty list"))
		return
	}
	if len(req.Domains) > h.maxDomains() {
		apperrors.RespondWithError(w, r, apperrors.NewValidationError(
			fmt.Sprintf("too many domains: %d exceeds the limit of %d", len(req.Domains), h.maxDomains())))
		return
	}

	set := core.NewDomainSet()
	for _, raw := range req.Domains {
		set.AddRaw(raw)
	}
	if set.Len() == 0 {
		apperrors.RespondWithError(w, r, apperrors.NewValidationError("no valid domains in request"))
		return
	}

	report, err := h.run(r.Context(), set.List())
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checker.NewEnvelope(report))
}

// CheckSingle handles POST /api/check-single.
func (h *CheckHandler) CheckSingle(w http.ResponseWriter, r *http.Request) {
	var req checker.SingleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	domain, ok := core.Normalize(req.Domain)
	if !ok {
		apperrors.RespondWithError(w, r, apperrors.NewValidationError("domain is required"))
		return
	}
	if h.Checker == nil {
		apperrors.RespondWithError(w, r, apperrors.NewInternalError("checker is not configured"))
		return
	}

	result := h.Checker.ProbeOne(r.Context(), domain)
	writeJSON(w, http.StatusOK, checker.FromResult(result))
}

// FileUpload handles POST /file_upload. The file is size-checked, parsed
// and every extracted domain is checked before anything is returned.
func (h *CheckHandler) FileUpload(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	defer func() { metrics.RecordUpload(status) }()

	fail := func(err error) {
		status = apperrors.HTTPStatusFromEnvelope(apperrors.Classify(r.Context(), err))
		apperrors.RespondWithError(w, r, err)
	}

	limit := h.maxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(fmt.Errorf("%w: request body exceeds %d bytes", ingest.ErrFileTooLarge, limit))
			return
		}
		fail(apperrors.NewInvalidInputError("expected a multipart form with a file field"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		fail(apperrors.NewInvalidInputError("no file provided"))
		return
	}
	defer file.Close() // nolint:errcheck // multipart part

	if err := ingest.CheckSize(header.Size, limit); err != nil {
		fail(err)
		return
	}

	parsed, err := ingest.Parse(r.Context(), header.Filename, file)
	if err != nil {
		fail(err)
		return
	}
	metrics.RecordIngest(string(parsed.Format), parsed.Accepted())
	if parsed.Accepted() == 0 {
		fail(apperrors.NewValidationError("no valid domains found in file"))
		return
	}

	if h.Logger != nil {
		h.Logger.Info("File upload parsed",
			zap.String("filename", header.Filename),
			zap.String("format", string(parsed.Format)),
			zap.Int("candidates", parsed.Candidates),
			zap.Int("domains", parsed.Accepted()),
		)
	}

	report, err := h.run(r.Context(), parsed.Domains)
	if err != nil {
		fail(err)
		return
	}
	writeJSON(w, http.StatusOK, checker.NewEnvelope(report))
}

func (h *CheckHandler) run(ctx context.Context, domains []core.Domain) (*core.BatchReport, error) {
	if h.Checker == nil {
		return nil, apperrors.NewInternalError("checker is not configured")
	}

	started := h.now()
	results, err := h.Checker.Run(ctx, domains)
	metrics.RecordBatch(checker.StrategyServer, len(domains), err == nil)
	if err != nil {
		return nil, err
	}
	completed := h.now()
	return &core.BatchReport{
		Results:     results,
		Summary:     core.Summarize(results, completed),
		Strategy:    checker.StrategyServer,
		StartedAt:   started,
		CompletedAt: completed,
	}, nil
}

func (h *CheckHandler) maxFileSize() int64 {
	if h.MaxFileSize > 0 {
		return h.MaxFileSize
	}
	return ingest.DefaultMaxFileSize
}

func (h *CheckHandler) maxDomains() int {
	if h.MaxDomains > 0 {
		return h.MaxDomains
	}
	return DefaultMaxDomains
}

func (h *CheckHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		return apperrors.NewInvalidInputError("Content-Type must be application/json")
	}
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.NewInvalidInputError("request body is empty")
		}
		return apperrors.NewInvalidInputError("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
