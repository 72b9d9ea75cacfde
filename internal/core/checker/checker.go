package checker

import (
	"context"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
)

// Prober checks a single domain and returns its status.
//
// Implementations return an error wrapping core.ErrTimeout, core.ErrUnreachable,
// core.ErrBadResponse or core.ErrRateLimited when no result could be
// produced; callers decide whether to fail soft.
type Prober interface {
	Probe(ctx context.Context, domain core.Domain) (*core.CheckResult, error)
	Name() string
}

// Prober kinds selectable from configuration.
const (
	ProberService = "service"
	ProberDirect  = "direct"
	ProberRelay   = "relay"
)

// ProbeStore supports cached probe results and rate limit state.
type ProbeStore interface {
	GetCachedProbe(ctx context.Context, domain core.Domain) (*core.CheckResult, error)
	SetCachedProbe(ctx context.Context, result *core.CheckResult, ttl time.Duration) error
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}
