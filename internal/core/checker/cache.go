package checker

import (
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
)

// CachePolicy controls cache TTLs for probe results.
type CachePolicy struct {
	ActiveTTL time.Duration
	ErrorTTL  time.Duration
	FailTTL   time.Duration
}

func cachePolicyWithDefaults(policy CachePolicy) CachePolicy {
	if policy.ActiveTTL == 0 {
		policy.ActiveTTL = time.Minute
	}
	if policy.ErrorTTL == 0 {
		policy.ErrorTTL = 30 * time.Second
	}
	if policy.FailTTL == 0 {
		policy.FailTTL = 10 * time.Second
	}
	return policy
}

func cacheTTL(policy CachePolicy, category core.Category) time.Duration {
	policy = cachePolicyWithDefaults(policy)

	switch category {
	case core.CategoryActive, core.CategoryRedirect:
		return policy.ActiveTTL
	case core.CategoryConnectionError:
		return policy.FailTTL
	default:
		return policy.ErrorTTL
	}
}
