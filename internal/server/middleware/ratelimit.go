package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"golang.org/x/time/rate"

	"github.com/sitecheck/sitecheck/internal/metrics"
)

const (
	// maxTrackedClients bounds the limiter table before idle clients are swept.
	maxTrackedClients = 4096
	clientIdleTTL     = 10 * time.Minute
)

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientRateLimiter applies a token bucket per client address.
type ClientRateLimiter struct {
	limit   rate.Limit
	burst   int
	now     func() time.Time
	mu      sync.Mutex
	clients map[string]*clientBucket
}

// NewClientRateLimiter creates a limiter allowing rps requests per second
// with the given burst for each client.
func NewClientRateLimiter(rps float64, burst int) *ClientRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ClientRateLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *ClientRateLimiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.sweep(now)
		}
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

func (l *ClientRateLimiter) sweep(now time.Time) {
	for key, bucket := range l.clients {
		if now.Sub(bucket.lastSeen) > clientIdleTTL {
			delete(l.clients, key)
		}
	}
}

func (l *ClientRateLimiter) retryAfterSeconds() int {
	if l.limit <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(l.limit)))
}

// Middleware refuses requests over the client's budget with 429 RATE_LIMITED.
func (l *ClientRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Allow(clientKey(r)) {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RecordRateLimited(getEndpointPattern(r))

		envelope := errors.NewErrorEnvelope("RATE_LIMITED", "rate limited").
			WithCorrelationID(GetRequestID(r.Context()))
		w.Header().Set("Retry-After", strconv.Itoa(l.retryAfterSeconds()))
		writeErrorResponse(w, envelope, http.StatusTooManyRequests)
	})
}

// clientKey identifies the caller. RealIP has already rewritten RemoteAddr
// when a proxy header was present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
