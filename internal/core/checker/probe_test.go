package checker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitecheck/sitecheck/internal/core"
	"github.com/sitecheck/sitecheck/internal/core/engine"
)

type memoryProbeStore struct {
	mu     sync.Mutex
	cached map[core.Domain]*core.CheckResult
	ttls   map[core.Domain]time.Duration
	limits map[string]*core.RateLimitState
}

func (m *memoryProbeStore) GetCachedProbe(ctx context.Context, domain core.Domain) (*core.CheckResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached[domain], nil
}

func (m *memoryProbeStore) SetCachedProbe(ctx context.Context, result *core.CheckResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		m.cached = make(map[core.Domain]*core.CheckResult)
		m.ttls = make(map[core.Domain]time.Duration)
	}
	m.cached[result.Domain] = result
	m.ttls[result.Domain] = ttl
	return nil
}

func (m *memoryProbeStore) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits[endpoint], nil
}

func (m *memoryProbeStore) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limits == nil {
		m.limits = make(map[string]*core.RateLimitState)
	}
	m.limits[endpoint] = state
	return nil
}

func hostOf(server *httptest.Server) core.Domain {
	return core.Domain(strings.TrimPrefix(server.URL, "http://"))
}

func TestDirectProberReportsStatusWithoutFollowingRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "sitecheck-test", r.Header.Get("User-Agent"))
		http.Redirect(w, r, "https://elsewhere.example/", http.StatusMovedPermanently)
	}))
	defer server.Close()

	prober := &DirectProber{Scheme: "http", UserAgent: "sitecheck-test"}
	result, err := prober.Probe(context.Background(), hostOf(server))
	require.NoError(t, err)
	require.Equal(t, core.StatusCode(http.StatusMovedPermanently), result.Status)
	require.Equal(t, core.CategoryRedirect, result.Category)
	require.Contains(t, result.Message, "elsewhere.example")
	require.NotNil(t, result.ResponseTimeSeconds)
	require.NotEmpty(t, result.CheckID)
}

func TestDirectProberCachesResults(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := &memoryProbeStore{}
	prober := &DirectProber{Scheme: "http", Store: store, UseCache: true}

	first, err := prober.Probe(context.Background(), hostOf(server))
	require.NoError(t, err)
	require.Equal(t, core.CategoryError, first.Category)
	require.Equal(t, 30*time.Second, store.ttls[hostOf(server)])

	second, err := prober.Probe(context.Background(), hostOf(server))
	require.NoError(t, err)
	require.Same(t, first, second)
	require.EqualValues(t, 1, hits.Load())
}

func TestDirectProberTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	prober := &DirectProber{Scheme: "http", Timeout: 50 * time.Millisecond}
	_, err := prober.Probe(context.Background(), hostOf(server))
	require.ErrorIs(t, err, core.ErrTimeout)
}

func TestDirectProberRespectsLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memoryProbeStore{}
	limiter := &engine.RateLimiter{
		Store:  store,
		Limits: map[string]engine.RateLimit{limiterKey(hostOf(server)): {RequestsPerWindow: 1, WindowDuration: time.Minute}},
		Clock:  func() time.Time { return now },
	}
	prober := &DirectProber{Scheme: "http", Limiter: limiter}

	_, err := prober.Probe(context.Background(), hostOf(server))
	require.NoError(t, err)

	_, err = prober.Probe(context.Background(), hostOf(server))
	require.ErrorIs(t, err, core.ErrRateLimited)
}

func TestLimiterKeyUsesRegistrableDomain(t *testing.T) {
	require.Equal(t, "example.co.uk", limiterKey("www.shop.Example.co.uk"))
	require.Equal(t, "example.com", limiterKey("example.com/path"))
}

func TestRelayProberParsesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "https://ok.com", r.URL.Query().Get("url"))
		_, _ = w.Write([]byte(`{"contents":"<html/>","status":{"url":"https://ok.com","http_code":404,"response_time":250}}`))
	}))
	defer server.Close()

	prober := &RelayProber{RelayURL: server.URL + "/get"}
	result, err := prober.Probe(context.Background(), "ok.com")
	require.NoError(t, err)
	require.Equal(t, core.StatusCode(404), result.Status)
	require.Equal(t, core.CategoryError, result.Category)
	require.InDelta(t, 0.25, result.ResponseTime(), 1e-9)
}

func TestRelayProberToleratesMissingHTTPCode(t *testing.T) {
	bodies := map[string]string{
		"NoStatus":    `{"contents":null}`,
		"NoHTTPCode":  `{"status":{"url":"https://ok.com"}}`,
		"UpstreamErr": `{"status":{"error":{"code":"ENOTFOUND"}}}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			result, err := (&RelayProber{RelayURL: server.URL}).Probe(context.Background(), "ok.com")
			require.NoError(t, err)
			require.False(t, result.Status.IsNumeric())
			if name == "UpstreamErr" {
				require.Equal(t, core.CategoryConnectionError, result.Category)
				require.Equal(t, core.StatusLabelError, result.Status.String())
				return
			}
			require.Equal(t, core.StatusLabelUnknown, result.Status.String())
			require.Equal(t, core.CategoryOther, result.Category)
		})
	}
}

func TestRelayProberRecordsBackoffOn429(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &memoryProbeStore{}
	limiter := &engine.RateLimiter{Store: store, Clock: func() time.Time { return now }}
	prober := &RelayProber{RelayURL: server.URL, Limiter: limiter}

	_, err := prober.Probe(context.Background(), "ok.com")
	require.ErrorIs(t, err, core.ErrRateLimited)

	allowed, wait, err := limiter.Acquire(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.False(t, allowed)
	require.Equal(t, 30*time.Second, wait)
}

func TestRelayProberRejectsGarbage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := (&RelayProber{RelayURL: server.URL}).Probe(context.Background(), "ok.com")
	require.ErrorIs(t, err, core.ErrBadResponse)
}
