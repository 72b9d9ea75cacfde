package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/engine"
)

// DefaultRelayURL is the public URL-fetching relay.
const DefaultRelayURL = "https://api.allorigins.win/get"

const maxRelayBody = 4 * 1024 * 1024

// RelayProber fetches https://<domain> through a public URL-fetching relay.
type RelayProber struct {
	RelayURL  string
	Client    *http.Client
	Limiter   *engine.RateLimiter
	Timeout   time.Duration
	UserAgent string
	Clock     func() time.Time
}

// relayEnvelope is the loosely specified relay response. Every member may be
// missing, and status.http_code in particular is absent on upstream failure.
type relayEnvelope struct {
	Contents *string `json:"contents"`
	Status   *struct {
		URL          string   `json:"url"`
		HTTPCode     *int     `json:"http_code"`
		ResponseTime *float64 `json:"response_time"`
		Error        any      `json:"error"`
	} `json:"status"`
}

// Probe asks the relay for the domain's front page.
func (p *RelayProber) Probe(ctx context.Context, domain core.Domain) (*core.CheckResult, error) {
	if p == nil {
		return nil, errors.New("relay prober is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if domain == "" {
		return nil, errors.New("domain is required")
	}

	base := parseBaseURL(p.RelayURL, DefaultRelayURL)
	endpoint := base.Hostname()

	if p.Limiter != nil && endpoint != "" {
		allowed, wait, err := p.Limiter.Acquire(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: relay %s, retry in %s", core.ErrRateLimited, endpoint, wait.Round(time.Second))
		}
	}

	target := *base
	query := target.Query()
	query.Set("url", "https://"+string(domain))
	target.RawQuery = query.Encode()

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent(p.UserAgent))

	started := p.now()
	resp, err := p.client().Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfterHeader(resp)
		if p.Limiter != nil && endpoint != "" && wait > 0 {
			_ = p.Limiter.Record429(ctx, endpoint, wait)
		}
		return nil, fmt.Errorf("%w: relay %s returned 429", core.ErrRateLimited, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: relay returned HTTP %d", core.ErrBadResponse, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRelayBody))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	finished := p.now()

	var env relayEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: decode relay response: %v", core.ErrBadResponse, err)
	}

	return p.result(domain, env, started, finished), nil
}

// Name identifies the prober.
func (p *RelayProber) Name() string {
	return ProberRelay
}

func (p *RelayProber) result(domain core.Domain, env relayEnvelope, started, finished time.Time) *core.CheckResult {
	result := &core.CheckResult{
		CheckID:             uuid.New().String(),
		Domain:              domain,
		Status:              core.Status{Label: core.StatusLabelUnknown},
		Message:             "Relay returned no status",
		ResponseTimeSeconds: elapsedSeconds(started, finished),
		Category:            core.CategoryOther,
		CheckedAt:           finished,
	}

	if env.Status == nil {
		return result
	}
	if env.Status.ResponseTime != nil && *env.Status.ResponseTime >= 0 {
		result.ResponseTimeSeconds = core.Seconds(*env.Status.ResponseTime / 1000)
	}
	if env.Status.HTTPCode == nil || *env.Status.HTTPCode <= 0 {
		if env.Status.Error != nil {
			result.Message = fmt.Sprintf("Relay error: %v", env.Status.Error)
			result.Status = core.StatusError()
			result.Category = core.CategoryConnectionError
		}
		return result
	}

	code := *env.Status.HTTPCode
	result.Status = core.StatusCode(code)
	result.Category = core.CategoryForStatus(code)
	result.Message = http.StatusText(code)
	if result.Message == "" {
		result.Message = "Unrecognised status"
	}
	return result
}

func (p *RelayProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return &http.Client{}
}

func (p *RelayProber) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}
