// internal/proxy/pool.go
package proxy

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRefreshAfter is how long a proxy list is used before it is replaced.
const DefaultRefreshAfter = 15 * time.Minute

// Source supplies a fresh list of proxy endpoints.
type Source interface {
	Proxies(ctx context.Context) ([]string, error)
}

// Static is a fixed proxy list.
type Static []string

// Proxies returns the list unchanged
func (s Static) Proxies(ctx context.Context) ([]string, error) {
	return []string(s), nil
}

// Pool is an ordered, cyclically advancing set of proxies. The list is
// replaced as a whole when it is older than the refresh interval; the check
// happens lazily on Next, there is no background timer.
type Pool struct {
	source       Source
	refreshAfter time.Duration
	now          func() time.Time

	mu          sync.Mutex
	proxies     []*url.URL
	cursor      int
	refreshedAt time.Time
}

// NewPool creates a Pool backed by source. A non-positive refreshAfter uses
// DefaultRefreshAfter.
func NewPool(source Source, refreshAfter time.Duration) *Pool {
	if refreshAfter <= 0 {
		refreshAfter = DefaultRefreshAfter
	}
	return &Pool{
		source:       source,
		refreshAfter: refreshAfter,
		now:          time.Now,
	}
}

// Next returns the proxy under the cursor and advances it. A nil URL means a
// direct connection, which is what an empty pool yields.
func (p *Pool) Next(ctx context.Context) *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.source != nil && p.now().Sub(p.refreshedAt) >= p.refreshAfter {
		if err := p.refreshLocked(ctx); err != nil {
			// Keep rotating through the old list until the next check
			log.Warn().Err(err).Int("proxies", len(p.proxies)).Msg("Proxy refresh failed")
			p.refreshedAt = p.now()
		}
	}

	if len(p.proxies) == 0 {
		return nil
	}

	proxy := p.proxies[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.proxies)
	return proxy
}

// Refresh replaces the proxy list from the source.
func (p *Pool) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshLocked(ctx)
}

func (p *Pool) refreshLocked(ctx context.Context) error {
	raw, err := p.source.Proxies(ctx)
	if err != nil {
		return fmt.Errorf("fetch proxy list: %w", err)
	}

	proxies := make([]*url.URL, 0, len(raw))
	for _, r := range raw {
		u, err := Parse(r)
		if err != nil {
			log.Debug().Str("proxy", r).Err(err).Msg("Skipping invalid proxy")
			continue
		}
		proxies = append(proxies, u)
	}

	p.proxies = proxies
	p.cursor = 0
	p.refreshedAt = p.now()

	log.Debug().Int("proxies", len(proxies)).Msg("Proxy pool refreshed")
	return nil
}

// Len returns the number of proxies currently in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// RefreshedAt returns when the list was last replaced.
func (p *Pool) RefreshedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshedAt
}

// Parse accepts "host:port" or a full proxy URL. Bare endpoints are http.
func Parse(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty proxy")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, fmt.Errorf("proxy %q has no host", raw)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return u, nil
}
