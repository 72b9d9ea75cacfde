package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/publicsuffix"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/engine"
)

// DefaultProbeTimeout bounds a single direct or relayed probe.
const DefaultProbeTimeout = 10 * time.Second

// DirectProber requests https://<domain> itself and reports the raw status.
// Redirects are not followed so that 3xx responses stay visible.
type DirectProber struct {
	Store       ProbeStore
	Client      *http.Client
	Limiter     *engine.RateLimiter
	CachePolicy CachePolicy
	UseCache    bool
	Scheme      string
	Timeout     time.Duration
	UserAgent   string
	Clock       func() time.Time
}

// Probe performs one GET against the domain.
func (p *DirectProber) Probe(ctx context.Context, domain core.Domain) (*core.CheckResult, error) {
	if p == nil {
		return nil, errors.New("direct prober is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if domain == "" {
		return nil, errors.New("domain is required")
	}

	if p.UseCache && p.Store != nil {
		if cached, err := p.Store.GetCachedProbe(ctx, domain); err == nil && cached != nil {
			return cached, nil
		}
	}

	endpoint := limiterKey(domain)
	if p.Limiter != nil {
		allowed, wait, err := p.Limiter.Acquire(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s, retry in %s", core.ErrRateLimited, endpoint, wait.Round(time.Second))
		}
	}

	target := p.scheme() + "://" + string(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrUnreachable, err)
	}
	req.Header.Set("User-Agent", userAgent(p.UserAgent))

	started := p.now()
	resp, err := p.client().Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	finished := p.now()

	if resp.StatusCode == http.StatusTooManyRequests && p.Limiter != nil {
		if wait := retryAfterHeader(resp); wait > 0 {
			_ = p.Limiter.Record429(ctx, endpoint, wait)
		}
	}

	result := &core.CheckResult{
		CheckID:             uuid.New().String(),
		Domain:              domain,
		Status:              core.StatusCode(resp.StatusCode),
		Message:             statusMessage(resp),
		ResponseTimeSeconds: elapsedSeconds(started, finished),
		Category:            core.CategoryForStatus(resp.StatusCode),
		CheckedAt:           finished,
	}
	p.cacheResult(ctx, result)
	return result, nil
}

// Name identifies the prober.
func (p *DirectProber) Name() string {
	return ProberDirect
}

func (p *DirectProber) cacheResult(ctx context.Context, result *core.CheckResult) {
	if p == nil || p.Store == nil || !p.UseCache || result == nil {
		return
	}
	ttl := cacheTTL(p.CachePolicy, result.Category)
	if ttl <= 0 {
		return
	}
	_ = p.Store.SetCachedProbe(ctx, result, ttl)
}

func (p *DirectProber) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return noRedirectClient(timeout)
}

func (p *DirectProber) scheme() string {
	if s := strings.TrimSpace(p.Scheme); s != "" {
		return s
	}
	return "https"
}

func (p *DirectProber) now() time.Time {
	if p != nil && p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}

// statusMessage describes the response the way the status service does.
func statusMessage(resp *http.Response) string {
	text := http.StatusText(resp.StatusCode)
	if text == "" {
		text = "Unrecognised status"
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		if location := resp.Header.Get("Location"); location != "" {
			return fmt.Sprintf("%s -> %s", text, location)
		}
	}
	return text
}

// limiterKey groups subdomains of one registrable domain under one window.
func limiterKey(domain core.Domain) string {
	host := strings.ToLower(string(domain))
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return registrable
	}
	return host
}
