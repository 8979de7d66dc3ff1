// Package config loads forumgrep settings from defaults, an optional YAML
// file, FORUMGREP_* environment variables and CLI flags, in that order.
package config

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level"`
	JSONLog  bool   `mapstructure:"json"`

	// HTTP
	HTTPTimeout   time.Duration     `mapstructure:"timeout"`
	UserAgents    []string          `mapstructure:"user_agents"`
	Headers       map[string]string `mapstructure:"headers"`
	FetchAttempts int               `mapstructure:"fetch_attempts"`
	Concurrency   int               `mapstructure:"concurrency"` // 0: one goroutine per thread URL

	// Page cache; a zero TTL disables it
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheMaxBytes int64         `mapstructure:"cache_max_bytes"`

	// Proxies
	Proxies      []string      `mapstructure:"proxies"`
	ProxyListURL string        `mapstructure:"proxy_list"`
	ProxyRefresh time.Duration `mapstructure:"proxy_refresh"`

	// Rate Limiting
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// Search defaults
	DefaultSite string `mapstructure:"site"`
	MaxPages    int    `mapstructure:"max_pages"`
	Format      string `mapstructure:"format"`

	// Browser login
	ChromePath   string        `mapstructure:"chrome_path"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`

	// Credential store
	StoreDir   string `mapstructure:"store_dir"`
	NoKeyring  bool   `mapstructure:"no_keyring"`
	ConfigFile string `mapstructure:"-"`

	Sites map[string]SiteConfig `mapstructure:"sites"`
}

// Site returns the named site, or the default site when name is empty.
func (c *Config) Site(name string) (string, SiteConfig, error) {
	if name == "" {
		name = c.DefaultSite
	}
	name = strings.ToLower(name)
	site, ok := c.Sites[name]
	if !ok {
		return "", SiteConfig{}, fmt.Errorf("unknown site %q (available: %s)", name, strings.Join(c.SiteNames(), ", "))
	}
	return name, site, nil
}

// SiteNames returns the configured site names in sorted order.
func (c *Config) SiteNames() []string {
	names := make([]string, 0, len(c.Sites))
	for name := range c.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HTTPHeaders returns the extra request headers as an http.Header.
func (c *Config) HTTPHeaders() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}
