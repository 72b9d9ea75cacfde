package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sitecheck/sitecheck/internal/core"
)

const (
	// DefaultServiceURL is used when no base URL is configured.
	DefaultServiceURL = "http://127.0.0.1:5000"
	// DefaultBulkTimeout bounds bulk and upload calls.
	DefaultBulkTimeout = 5 * time.Minute
	// DefaultSingleTimeout bounds single-domain calls.
	DefaultSingleTimeout = 30 * time.Second

	// StrategyServer names the server-delegated strategy in reports.
	StrategyServer = "server"

	maxErrorBody = 64 * 1024
)

// ServiceClient talks to the remote status-check service.
type ServiceClient struct {
	BaseURL       string
	Client        *http.Client
	Timeout       time.Duration
	SingleTimeout time.Duration
	UserAgent     string
	Clock         func() time.Time
}

// CheckBulk submits the whole domain list in one call. The call is
// all-or-nothing: any failure returns an error and no results.
func (c *ServiceClient) CheckBulk(ctx context.Context, domains []core.Domain) (*core.BatchReport, error) {
	if c == nil {
		return nil, errors.New("service client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return nil, errors.New("at least one domain is required")
	}

	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = string(d)
	}
	body, err := json.Marshal(BulkRequest{Domains: names})
	if err != nil {
		return nil, err
	}

	started := c.now()
	var env Envelope
	if err := c.do(ctx, c.bulkTimeout(), "/api/check-bulk", "application/json", bytes.NewReader(body), &env); err != nil {
		return nil, err
	}
	return c.report(env, started), nil
}

// CheckSingle checks one domain through the service.
func (c *ServiceClient) CheckSingle(ctx context.Context, domain core.Domain) (*core.CheckResult, error) {
	if c == nil {
		return nil, errors.New("service client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(SingleRequest{Domain: string(domain)})
	if err != nil {
		return nil, err
	}

	var wire WireResult
	if err := c.do(ctx, c.singleTimeout(), "/api/check-single", "application/json", bytes.NewReader(body), &wire); err != nil {
		return nil, err
	}
	if wire.Domain == "" && wire.URL == "" {
		wire.Domain = string(domain)
	}

	result := wire.ToResult(c.now())
	result.CheckID = uuid.New().String()
	return result, nil
}

// UploadFile sends a spreadsheet to the service, which ingests and checks it.
func (c *ServiceClient) UploadFile(ctx context.Context, name string, r io.Reader) (*core.BatchReport, error) {
	if c == nil {
		return nil, errors.New("service client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return nil, errors.New("file is required")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	started := c.now()
	var env Envelope
	if err := c.do(ctx, c.bulkTimeout(), "/file_upload", form.FormDataContentType(), &buf, &env); err != nil {
		return nil, err
	}
	if env.Results == nil {
		return nil, fmt.Errorf("%w: invalid response format from server", core.ErrBadResponse)
	}
	return c.report(env, started), nil
}

// Probe adapts CheckSingle to the Prober interface.
func (c *ServiceClient) Probe(ctx context.Context, domain core.Domain) (*core.CheckResult, error) {
	return c.CheckSingle(ctx, domain)
}

// Name identifies the prober.
func (c *ServiceClient) Name() string {
	return ProberService
}

func (c *ServiceClient) report(env Envelope, started time.Time) *core.BatchReport {
	report := env.Report(c.now())
	report.Strategy = StrategyServer
	report.StartedAt = started
	report.CompletedAt = c.now()
	for _, r := range report.Results {
		r.CheckID = uuid.New().String()
	}
	return report
}

func (c *ServiceClient) do(ctx context.Context, timeout time.Duration, path, contentType string, body io.Reader, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := parseBaseURL(c.BaseURL, DefaultServiceURL).JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent(c.UserAgent))

	resp, err := c.client().Do(req)
	if err != nil {
		return classifyTransportError(ctx, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", core.ErrBadResponse, errorMessage(resp))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return classifyTransportError(ctx, ctxErr)
		}
		return fmt.Errorf("%w: decode %s response: %v", core.ErrBadResponse, path, err)
	}
	return nil
}

// errorMessage prefers a JSON message or error field and falls back to
// the HTTP status line.
func errorMessage(resp *http.Response) string {
	fallback := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return fallback
	}

	var body ErrorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return fallback
	}
	if msg := body.Text(); msg != "" {
		return msg
	}
	return fallback
}

func (c *ServiceClient) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return &http.Client{}
}

func (c *ServiceClient) bulkTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultBulkTimeout
}

func (c *ServiceClient) singleTimeout() time.Duration {
	if c.SingleTimeout > 0 {
		return c.SingleTimeout
	}
	return DefaultSingleTimeout
}

func (c *ServiceClient) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}

// ServiceURL reports the resolved base URL, for diagnostics.
func (c *ServiceClient) ServiceURL() *url.URL {
	if c == nil {
		return parseBaseURL("", DefaultServiceURL)
	}
	return parseBaseURL(c.BaseURL, DefaultServiceURL)
}
