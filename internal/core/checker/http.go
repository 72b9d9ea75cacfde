package checker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sitecheck/sitecheck/internal/core"
)

const defaultUserAgent = "sitecheck"

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}

	return 0
}

// classifyTransportError maps a failed round trip to a timeout or an
// unreachable error. The caller's own cancellation is passed through.
func classifyTransportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", core.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", core.ErrTimeout, err)
	}
	if ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", core.ErrUnreachable, err)
}

func noRedirectClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func parseBaseURL(raw, fallback string) *url.URL {
	if raw = strings.TrimSpace(raw); raw != "" {
		if parsed, err := url.Parse(raw); err == nil && parsed.Host != "" {
			return parsed
		}
	}
	parsed, _ := url.Parse(fallback)
	return parsed
}

func userAgent(value string) string {
	if strings.TrimSpace(value) == "" {
		return defaultUserAgent
	}
	return value
}

func elapsedSeconds(start, end time.Time) *float64 {
	seconds := end.Sub(start).Seconds()
	if seconds < 0 {
		seconds = 0
	}
	// Millisecond precision keeps exports readable.
	seconds = float64(int64(seconds*1000+0.5)) / 1000
	return &seconds
}
