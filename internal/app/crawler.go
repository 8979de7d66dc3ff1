package app

import (
	"fmt"

	"github.com/law-makers/forumgrep/internal/config"
	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/internal/engine/extract"
	"github.com/law-makers/forumgrep/internal/engine/forum"
	"github.com/law-makers/forumgrep/internal/engine/index"
	"github.com/law-makers/forumgrep/internal/retry"
	"github.com/law-makers/forumgrep/internal/session"
	"github.com/law-makers/forumgrep/pkg/models"
)

// NewSession creates a session manager for site. The handshake is chosen
// from what creds carry: username and password drive the login handshake
// when the site has one configured, anything else installs the stored
// cookies and checks the required ones are present.
func (a *Application) NewSession(site config.SiteConfig, creds models.Credentials) (*session.Manager, error) {
	var handshake session.Handshake = session.CookieHandshake{Required: site.RequiredCookies}
	if creds.HasLogin() && site.Login.Enabled() {
		handshake = site.Login.Handshake()
	}

	fetchRetry := retry.FetchConfig()
	fetchRetry.MaxAttempts = a.Config.FetchAttempts

	m, err := session.New(session.Options{
		BaseURL:     site.BaseURL,
		SearchPath:  site.SearchPath,
		TokenField:  site.TokenField,
		Handshake:   handshake,
		Proxies:     a.Proxies,
		Limiter:     a.Limiter,
		UserAgents:  a.Config.UserAgents,
		Headers:     a.Config.Headers,
		Timeout:     a.Config.HTTPTimeout,
		Retry:       fetchRetry,
		Cache:       a.pageCache(),
		Concurrency: a.Config.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.sessions = append(a.sessions, m)
	a.mu.Unlock()

	a.Logger.Debug().
		Str("base_url", site.BaseURL).
		Str("handshake", handshake.Name()).
		Msg("Session created")
	return m, nil
}

// NewCrawler builds the crawler for the named site (the default site when
// name is empty) with its stored credentials.
func (a *Application) NewCrawler(name string) (engine.Crawler, error) {
	name, site, err := a.Config.Site(name)
	if err != nil {
		return nil, err
	}

	rules, ok := extract.Lookup(site.Rules)
	if !ok {
		return nil, fmt.Errorf("unknown rules preset %q", site.Rules)
	}
	scraper := extract.New(rules)

	creds, err := a.Credentials(name)
	if err != nil {
		return nil, err
	}

	sess, err := a.NewSession(site, creds)
	if err != nil {
		return nil, err
	}

	switch site.Strategy {
	case config.StrategyForum:
		return forum.New(sess, scraper, forum.Config{
			Name:               name,
			NoResultsSelector:  site.NoResultsSelector,
			ThreadLinkSelector: site.ThreadLinkSelector,
			Credentials:        creds,
		}), nil

	case config.StrategyIndex:
		var opts []index.GoogleOption
		if site.IndexEndpoint != "" {
			opts = append(opts, index.WithEndpoint(site.IndexEndpoint))
		}
		if site.IndexLanguage != "" {
			opts = append(opts, index.WithLanguage(site.IndexLanguage))
		}
		if site.ResultXPath != "" {
			opts = append(opts, index.WithResultXPath(site.ResultXPath))
		}
		idx := index.NewGoogleIndex(sess, site.IndexHost, opts...)
		return index.New(idx, sess, scraper, index.Config{
			Name:           name,
			Host:           site.IndexHost,
			ExcludeSegment: site.ExcludeSegment,
			MaxOffset:      site.MaxOffset,
		}), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q for site %s", site.Strategy, name)
	}
}

// pageCache returns the cache as a session.PageCache, nil when disabled. A
// nil *cache.PageCache must not be stored in the interface.
func (a *Application) pageCache() session.PageCache {
	if a.Cache == nil {
		return nil
	}
	return a.Cache
}
