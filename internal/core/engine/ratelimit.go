package engine

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
)

// RateLimit is a fixed request window.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// RateLimitStore persists per-endpoint window state. *store.Store satisfies it.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// DefaultLimits covers the public CORS relays. Direct probes are keyed by
// registrable domain and get FallbackLimit.
var DefaultLimits = map[string]RateLimit{
	"api.allorigins.win": {RequestsPerWindow: 60, WindowDuration: time.Minute},
	"corsproxy.io":       {RequestsPerWindow: 60, WindowDuration: time.Minute},
	"relay":              {RequestsPerWindow: 60, WindowDuration: time.Minute},
}

// FallbackLimit applies to endpoints without their own entry.
var FallbackLimit = RateLimit{RequestsPerWindow: 30, WindowDuration: time.Minute}

// RateLimiter spaces outbound probes per endpoint. Without a Store every
// request is allowed.
type RateLimiter struct {
	Store  RateLimitStore
	Limits map[string]RateLimit
	Clock  func() time.Time
	Margin float64

	// mu serializes read-modify-write of stored state; probes in a batch
	// run concurrently.
	mu sync.Mutex
}

// Acquire takes one request slot for endpoint. When the endpoint is backing
// off or its window is full it returns false and how long to wait.
func (r *RateLimiter) Acquire(ctx context.Context, endpoint string) (bool, time.Duration, error) {
	if r == nil || r.Store == nil {
		return true, 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	state, err := r.load(ctx, endpoint, now)
	if err != nil {
		return true, 0, err
	}

	if wait := state.Backoff(now); wait > 0 {
		return false, wait, nil
	}

	limit := r.getLimit(endpoint)
	windowEnd := state.WindowStart.Add(limit.WindowDuration)
	if !now.Before(windowEnd) {
		state.RequestCount = 0
		state.WindowStart = now
		windowEnd = now.Add(limit.WindowDuration)
	}
	if state.RequestCount >= limit.RequestsPerWindow {
		return false, windowEnd.Sub(now), nil
	}

	state.RequestCount++
	return true, 0, r.Store.UpdateRateLimit(ctx, endpoint, state)
}

// Record429 starts a backoff of retryAfter after the endpoint answered 429.
func (r *RateLimiter) Record429(ctx context.Context, endpoint string, retryAfter time.Duration) error {
	if r == nil || r.Store == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	state, err := r.load(ctx, endpoint, now)
	if err != nil {
		return err
	}

	state.Last429At = &now
	if retryAfter > 0 {
		until := now.Add(retryAfter)
		state.BackoffUntil = &until
	}
	return r.Store.UpdateRateLimit(ctx, endpoint, state)
}

func (r *RateLimiter) load(ctx context.Context, endpoint string, now time.Time) (*core.RateLimitState, error) {
	state, err := r.Store.GetRateLimit(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return &core.RateLimitState{WindowStart: now}, nil
	}
	copied := *state
	if copied.WindowStart.IsZero() {
		copied.WindowStart = now
	}
	return &copied, nil
}

// ApplyOverrides sets per-minute limits for the named endpoints on top of
// DefaultLimits. Blank names and non-positive values are ignored.
func (r *RateLimiter) ApplyOverrides(overrides map[string]int) {
	if r == nil || len(overrides) == 0 {
		return
	}

	if r.Limits == nil {
		r.Limits = make(map[string]RateLimit, len(DefaultLimits)+len(overrides))
		for key, limit := range DefaultLimits {
			r.Limits[key] = limit
		}
	}
	for endpoint, perMinute := range overrides {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" || perMinute <= 0 {
			continue
		}
		r.Limits[endpoint] = RateLimit{RequestsPerWindow: perMinute, WindowDuration: time.Minute}
	}
}

// ApplySafetyMargin scales every limit by margin, which must be in (0, 1].
func (r *RateLimiter) ApplySafetyMargin(margin float64) {
	if r == nil || margin <= 0 || margin > 1 {
		return
	}
	r.Margin = margin
}

// Limit reports the effective window for endpoint, margin applied.
func (r *RateLimiter) Limit(endpoint string) RateLimit {
	return r.getLimit(endpoint)
}

func (r *RateLimiter) getLimit(endpoint string) RateLimit {
	if r == nil {
		return RateLimit{RequestsPerWindow: 1, WindowDuration: time.Minute}
	}

	limits := r.Limits
	if limits == nil {
		limits = DefaultLimits
	}
	limit, ok := limits[endpoint]
	if !ok && strings.HasPrefix(endpoint, "relay.") {
		limit, ok = limits["relay"]
	}
	if !ok {
		limit = FallbackLimit
	}
	return r.applyMargin(limit)
}

func (r *RateLimiter) applyMargin(limit RateLimit) RateLimit {
	if r.Margin <= 0 || r.Margin > 1 {
		return limit
	}
	limit.RequestsPerWindow = max(1, int(math.Floor(float64(limit.RequestsPerWindow)*r.Margin)))
	return limit
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock().UTC()
	}
	return time.Now().UTC()
}
