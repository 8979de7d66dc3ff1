// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/law-makers/forumgrep/internal/auth"
	"github.com/law-makers/forumgrep/internal/cache"
	"github.com/law-makers/forumgrep/internal/config"
	"github.com/law-makers/forumgrep/internal/proxy"
	"github.com/law-makers/forumgrep/internal/ratelimit"
	"github.com/law-makers/forumgrep/internal/session"
	"github.com/law-makers/forumgrep/pkg/models"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config  *config.Config
	Logger  *zerolog.Logger
	Limiter *ratelimit.HostLimiter
	Proxies *proxy.Pool
	Store   *auth.Store
	Cache   *cache.PageCache

	mu        sync.Mutex
	sessions  []*session.Manager
	startTime time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Creates the per-host rate limiter, with per-site overrides
//   - Creates the proxy pool from the static list and/or the proxy list URL
//   - Opens the credential store
//   - Starts the thread page cache unless cache_ttl is zero
//
// Nothing here touches the network; the proxy list is fetched on first use.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := newLogger(cfg)
	log.Logger = logger

	limiter := ratelimit.NewHostLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	for _, name := range cfg.SiteNames() {
		site := cfg.Sites[name]
		if site.RateLimitRPS > 0 {
			limiter.SetLimit(hostOf(site.BaseURL), site.RateLimitRPS, cfg.RateLimitBurst)
		}
	}
	logger.Debug().
		Float64("rps", cfg.RateLimitRPS).
		Int("burst", cfg.RateLimitBurst).
		Msg("Rate limiter initialized")

	pool := proxy.NewPool(proxySource(cfg), cfg.ProxyRefresh)
	logger.Debug().
		Int("static", len(cfg.Proxies)).
		Str("list", cfg.ProxyListURL).
		Dur("refresh", cfg.ProxyRefresh).
		Msg("Proxy pool initialized")

	store := auth.NewStore(auth.StoreOptions{Dir: cfg.StoreDir, FileOnly: cfg.NoKeyring})

	var pages *cache.PageCache
	if cfg.CacheTTL > 0 {
		pages = cache.NewPageCache(cfg.CacheTTL, cfg.CacheMaxBytes)
		logger.Debug().
			Dur("ttl", cfg.CacheTTL).
			Int64("max_bytes", cfg.CacheMaxBytes).
			Msg("Page cache initialized")
	}

	app := &Application{
		Config:    cfg,
		Logger:    &logger,
		Limiter:   limiter,
		Proxies:   pool,
		Store:     store,
		Cache:     pages,
		startTime: time.Now(),
	}

	logger.Debug().Msg("Application initialized successfully")
	return app, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	// Console info logs would interleave with the progress bar; they are only
	// shown with -v or in JSON mode.
	if level == zerolog.InfoLevel && !cfg.JSONLog {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(logWriter).With().Timestamp().Logger()
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")
	return logger
}

func proxySource(cfg *config.Config) proxy.Source {
	var chain proxy.Chain
	if len(cfg.Proxies) > 0 {
		chain = append(chain, proxy.Static(cfg.Proxies))
	}
	if cfg.ProxyListURL != "" {
		chain = append(chain, proxy.ListSource{
			URL:    cfg.ProxyListURL,
			Client: &http.Client{Timeout: cfg.HTTPTimeout},
		})
	}
	return chain
}

// Credentials loads the stored credentials for site. Missing credentials are
// not an error: the site may not need any, and the handshake reports what is
// missing. Expired credentials are.
func (a *Application) Credentials(site string) (models.Credentials, error) {
	creds, err := a.Store.Load(site)
	switch {
	case err == nil:
		return creds, nil
	case errors.Is(err, auth.ErrNotFound):
		a.Logger.Debug().Str("site", site).Msg("No stored credentials")
		return models.Credentials{Site: site}, nil
	case errors.Is(err, auth.ErrExpired):
		return models.Credentials{}, fmt.Errorf("credentials for %s expired, run 'forumgrep login %s': %w", site, site, err)
	default:
		return models.Credentials{}, fmt.Errorf("failed to load credentials for %s: %w", site, err)
	}
}

// Close gracefully shuts down the application and all its resources.
//
// It closes the idle connections of every session created through the
// application. A context with a timeout should be provided to prevent
// indefinite blocking.
func (a *Application) Close(ctx context.Context) error {
	a.mu.Lock()
	sessions := a.sessions
	a.sessions = nil
	a.mu.Unlock()

	for _, s := range sessions {
		if ctx.Err() != nil {
			break
		}
		s.Close()
	}
	if a.Cache != nil {
		stats := a.Cache.Stats()
		a.Logger.Debug().
			Int("entries", stats.Entries).
			Float64("hit_rate", stats.HitRate()).
			Msg("Page cache closed")
		a.Cache.Close()
	}

	a.Logger.Debug().
		Dur("uptime", a.Uptime()).
		Int("proxies", a.Proxies.Len()).
		Time("proxies_refreshed_at", a.Proxies.RefreshedAt()).
		Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
