package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func newCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "forumgrep"}
	RegisterFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}
	return cmd
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(newCommand(t, "--config", path))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Errorf("Expected timeout %v, got %v", DefaultHTTPTimeout, cfg.HTTPTimeout)
	}
	if cfg.FetchAttempts != DefaultFetchAttempts {
		t.Errorf("Expected %d fetch attempts, got %d", DefaultFetchAttempts, cfg.FetchAttempts)
	}
	if cfg.Concurrency != 0 {
		t.Errorf("Expected uncapped fan-out by default, got concurrency %d", cfg.Concurrency)
	}
	if cfg.CacheTTL != DefaultCacheTTL || cfg.CacheMaxBytes != DefaultCacheMaxBytes {
		t.Errorf("Expected cache %v/%d, got %v/%d", DefaultCacheTTL, DefaultCacheMaxBytes, cfg.CacheTTL, cfg.CacheMaxBytes)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("Expected log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.ConfigFile != path {
		t.Errorf("Expected config file %q, got %q", path, cfg.ConfigFile)
	}

	name, site, err := cfg.Site("")
	if err != nil {
		t.Fatalf("Default site lookup failed: %v", err)
	}
	if name != "bhf" || site.Strategy != StrategyForum {
		t.Errorf("Expected bhf forum site, got %s %s", name, site.Strategy)
	}
	if strings.Join(site.RequiredCookies, ",") != "xf_session,xf_user" {
		t.Errorf("Expected xf_session,xf_user required, got %v", site.RequiredCookies)
	}
	if site.Login.Enabled() {
		t.Error("Expected login handshake disabled without a bootstrap script")
	}

	_, lolz, err := cfg.Site("lolz")
	if err != nil {
		t.Fatalf("lolz lookup failed: %v", err)
	}
	if lolz.Strategy != StrategyIndex || lolz.ExcludeSegment != "forums" || lolz.IndexHost != "lolz.guru" {
		t.Errorf("Unexpected lolz preset: %+v", lolz)
	}
}

func TestLoad_FileOverridesSingleSiteField(t *testing.T) {
	path := writeConfig(t, `
timeout: 10s
proxies: ["10.0.0.1:8080", "socks5://10.0.0.2:1080"]
headers:
  X-Requested-With: XMLHttpRequest
sites:
  bhf:
    base_url: https://mirror.example
    login:
      script_path: /js/xf/preamble.js
      client_id_expr: XF.config.clientId
  demo:
    strategy: index
    base_url: https://demo.example
    rules: lolz
    index_host: demo.example
`)
	cfg, err := Load(newCommand(t, "--config", path))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.HTTPTimeout)
	}
	if len(cfg.Proxies) != 2 {
		t.Errorf("Expected 2 proxies, got %v", cfg.Proxies)
	}
	if got := cfg.HTTPHeaders().Get("X-Requested-With"); got != "XMLHttpRequest" {
		t.Errorf("Expected header from file, got %q", got)
	}

	_, bhf, _ := cfg.Site("bhf")
	if bhf.BaseURL != "https://mirror.example" {
		t.Errorf("Expected overridden base URL, got %s", bhf.BaseURL)
	}
	if bhf.TokenField != "_xfToken" {
		t.Errorf("Expected preset token field to survive, got %q", bhf.TokenField)
	}
	if !bhf.Login.Enabled() {
		t.Error("Expected login handshake enabled")
	}
	if h := bhf.Login.Handshake(); h.ClientIDField != "_xfClientId" || h.UserCookie != "xf_user" {
		t.Errorf("Unexpected handshake: %+v", h)
	}

	if _, _, err := cfg.Site("demo"); err != nil {
		t.Errorf("Expected demo site, got %v", err)
	}
	if got := strings.Join(cfg.SiteNames(), ","); got != "bhf,demo,lolz" {
		t.Errorf("Expected sorted site names, got %s", got)
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeConfig(t, "timeout: 10s\nrate_limit_rps: 2\n")
	t.Setenv("FORUMGREP_TIMEOUT", "20s")
	t.Setenv("FORUMGREP_RATE_LIMIT_RPS", "3")

	cfg, err := Load(newCommand(t, "--config", path, "--timeout", "5s", "-v"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("Expected flag to win with 5s, got %v", cfg.HTTPTimeout)
	}
	if cfg.RateLimitRPS != 3 {
		t.Errorf("Expected env to beat file with 3 rps, got %v", cfg.RateLimitRPS)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected verbose to select debug, got %q", cfg.LogLevel)
	}
}

func TestLoad_EnvLists(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("FORUMGREP_PROXIES", "10.0.0.1:8080, 10.0.0.2:8080")

	cfg, err := Load(newCommand(t, "--config", path))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Proxies) != 2 || cfg.Proxies[1] != "10.0.0.2:8080" {
		t.Errorf("Expected two proxies from env, got %v", cfg.Proxies)
	}
}

func TestLoad_HeaderFlags(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(newCommand(t, "--config", path, "--header", "X-Token: abc", "--header", "Referer:https://bhf.io/"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	h := cfg.HTTPHeaders()
	if h.Get("X-Token") != "abc" || h.Get("Referer") != "https://bhf.io/" {
		t.Errorf("Unexpected headers: %v", h)
	}

	if _, err := Load(newCommand(t, "--config", path, "--header", "broken")); err == nil {
		t.Error("Expected error for malformed header")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(newCommand(t, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	if err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"too many attempts", func(c *Config) { c.FetchAttempts = MaxFetchAttempts + 1 }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
		{"negative cache ttl", func(c *Config) { c.CacheTTL = -time.Second }},
		{"negative rate", func(c *Config) { c.RateLimitRPS = -1 }},
		{"bad proxy", func(c *Config) { c.Proxies = []string{"ftp://x:21"} }},
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }},
		{"unknown default site", func(c *Config) { c.DefaultSite = "nowhere" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"unknown rules", func(c *Config) {
			s := c.Sites["bhf"]
			s.Rules = "phpbb"
			c.Sites["bhf"] = s
		}},
		{"unknown strategy", func(c *Config) {
			s := c.Sites["lolz"]
			s.Strategy = "crawl"
			c.Sites["lolz"] = s
		}},
		{"index without host", func(c *Config) {
			s := c.Sites["lolz"]
			s.IndexHost = ""
			c.Sites["lolz"] = s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := validate(c); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}

	if err := validate(validConfig()); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		LogLevel:       DefaultLogLevel,
		HTTPTimeout:    DefaultHTTPTimeout,
		FetchAttempts:  DefaultFetchAttempts,
		RateLimitRPS:   DefaultRateLimitRPS,
		RateLimitBurst: DefaultRateLimitBurst,
		ProxyRefresh:   DefaultProxyRefresh,
		DefaultSite:    DefaultSite,
		MaxPages:       DefaultMaxPages,
		Sites:          DefaultSites(),
	}
}
