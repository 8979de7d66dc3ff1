// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per host so a crawl does not hammer a
// forum or the search index. The zero rate disables limiting.
type HostLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit
	burst    int
}

// NewHostLimiter creates a limiter allowing requestsPerSecond per host.
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  limit,
		burst:    burst,
	}
}

// Wait blocks until a request to rawURL may proceed.
func (hl *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	if hl == nil {
		return nil
	}

	host := hostOf(rawURL)
	if host == "" {
		// Invalid URL, let it through and fail in the transport
		return nil
	}

	return hl.limiter(host).Wait(ctx)
}

// SetLimit overrides the rate for one host, e.g. a slower search index.
func (hl *HostLimiter) SetLimit(host string, requestsPerSecond float64, burst int) {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}

	if l, ok := hl.limiters[host]; ok {
		l.SetLimit(limit)
		l.SetBurst(burst)
		return
	}
	hl.limiters[host] = rate.NewLimiter(limit, burst)
}

func (hl *HostLimiter) limiter(host string) *rate.Limiter {
	hl.mu.RLock()
	l, ok := hl.limiters[host]
	hl.mu.RUnlock()
	if ok {
		return l
	}

	hl.mu.Lock()
	defer hl.mu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := hl.limiters[host]; ok {
		return l
	}
	l = rate.NewLimiter(hl.perHost, hl.burst)
	hl.limiters[host] = l
	return l
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
