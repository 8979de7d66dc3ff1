package config

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/law-makers/forumgrep/internal/engine/extract"
	"github.com/law-makers/forumgrep/internal/proxy"
	urlutil "github.com/law-makers/forumgrep/internal/utils/url"
)

func validate(c *Config) error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.FetchAttempts <= 0 || c.FetchAttempts > MaxFetchAttempts {
		return fmt.Errorf("fetch attempts must be between 1 and %d", MaxFetchAttempts)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0")
	}
	if c.CacheTTL < 0 || c.CacheMaxBytes < 0 {
		return fmt.Errorf("cache ttl and size must be >= 0")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit must be >= 0")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("rate limit burst must be >= 1")
	}
	if c.ProxyRefresh <= 0 {
		return fmt.Errorf("proxy refresh interval must be > 0")
	}
	for _, p := range c.Proxies {
		if _, err := proxy.Parse(p); err != nil {
			return err
		}
	}
	if c.ProxyListURL != "" {
		if err := urlutil.ValidateURL(c.ProxyListURL); err != nil {
			return fmt.Errorf("proxy list: %w", err)
		}
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max pages must be >= 1")
	}
	if len(c.Sites) == 0 {
		return fmt.Errorf("no sites configured")
	}
	if _, _, err := c.Site(""); err != nil {
		return err
	}

	var errs []error
	for _, name := range c.SiteNames() {
		if err := validateSite(c.Sites[name]); err != nil {
			errs = append(errs, fmt.Errorf("site %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func validateSite(s SiteConfig) error {
	if err := urlutil.ValidateURL(s.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if _, ok := extract.Lookup(s.Rules); !ok {
		return fmt.Errorf("unknown rules preset %q", s.Rules)
	}
	if s.RateLimitRPS < 0 {
		return fmt.Errorf("rate_limit_rps must be >= 0")
	}

	switch s.Strategy {
	case StrategyForum:
		if s.ThreadLinkSelector == "" {
			return fmt.Errorf("thread_link_selector is required")
		}
	case StrategyIndex:
		if s.IndexHost == "" {
			return fmt.Errorf("index_host is required")
		}
		if s.MaxOffset < 0 {
			return fmt.Errorf("max_offset must be >= 0")
		}
		if s.IndexEndpoint != "" {
			if err := urlutil.ValidateURL(s.IndexEndpoint); err != nil {
				return fmt.Errorf("index_endpoint: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown strategy %q", s.Strategy)
	}
	return nil
}
