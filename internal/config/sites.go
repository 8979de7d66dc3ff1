package config

import "github.com/law-makers/forumgrep/internal/session"

// Crawl strategies a site can use.
const (
	StrategyForum = "forum"
	StrategyIndex = "index"
)

// LoginConfig describes the username/password handshake of a forum. Sites
// without one authenticate with captured cookies only.
type LoginConfig struct {
	ScriptPath    string `mapstructure:"script_path"`
	ClientIDExpr  string `mapstructure:"client_id_expr"`
	ClientIDField string `mapstructure:"client_id_field"`
	LoginPath     string `mapstructure:"login_path"`
	SessionCookie string `mapstructure:"session_cookie"`
	UserCookie    string `mapstructure:"user_cookie"`
}

// Enabled reports whether enough of the handshake is configured to run it.
func (l LoginConfig) Enabled() bool {
	return l.LoginPath != "" && l.ScriptPath != "" && l.ClientIDExpr != ""
}

// Handshake converts l into a session handshake.
func (l LoginConfig) Handshake() session.LoginHandshake {
	return session.LoginHandshake{
		ScriptPath:    l.ScriptPath,
		ClientIDExpr:  l.ClientIDExpr,
		ClientIDField: l.ClientIDField,
		LoginPath:     l.LoginPath,
		SessionCookie: l.SessionCookie,
		UserCookie:    l.UserCookie,
	}
}

// SiteConfig is everything forumgrep needs to know about one site. Adding a
// site is a config change: a new entry under "sites" in the config file.
type SiteConfig struct {
	Strategy string `mapstructure:"strategy"`
	BaseURL  string `mapstructure:"base_url"`
	Rules    string `mapstructure:"rules"`

	// forum strategy
	SearchPath         string      `mapstructure:"search_path"`
	TokenField         string      `mapstructure:"token_field"`
	NoResultsSelector  string      `mapstructure:"no_results_selector"`
	ThreadLinkSelector string      `mapstructure:"thread_link_selector"`
	RequiredCookies    []string    `mapstructure:"required_cookies"`
	Login              LoginConfig `mapstructure:"login"`

	// index strategy
	IndexHost      string `mapstructure:"index_host"`
	IndexEndpoint  string `mapstructure:"index_endpoint"`
	IndexLanguage  string `mapstructure:"index_language"`
	ResultXPath    string `mapstructure:"result_xpath"`
	ExcludeSegment string `mapstructure:"exclude_segment"`
	MaxOffset      int    `mapstructure:"max_offset"`

	// Per-site politeness override. Zero uses the global rate limit.
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
}

// DefaultSites are the built-in presets.
func DefaultSites() map[string]SiteConfig {
	return map[string]SiteConfig{
		"bhf": {
			Strategy:           StrategyForum,
			BaseURL:            "https://bhf.io",
			Rules:              "bhf",
			SearchPath:         "/search/search",
			TokenField:         "_xfToken",
			NoResultsSelector:  `div[uix_component="MainContent"] div.blockMessage`,
			ThreadLinkSelector: `a[href^="/thread"]`,
			RequiredCookies:    []string{"xf_session", "xf_user"},
			Login: LoginConfig{
				ClientIDField: "_xfClientId",
				LoginPath:     "/login/login",
				SessionCookie: "xf_session",
				UserCookie:    "xf_user",
			},
		},
		"lolz": {
			Strategy:       StrategyIndex,
			BaseURL:        "https://lolz.guru",
			Rules:          "lolz",
			IndexHost:      "lolz.guru",
			ExcludeSegment: "forums",
			MaxOffset:      1_000_000,
		},
	}
}

// siteDefaults flattens s into viper keys so file values override single
// fields rather than whole sites.
func siteDefaults(name string, s SiteConfig) map[string]any {
	p := "sites." + name + "."
	return map[string]any{
		p + "strategy":              s.Strategy,
		p + "base_url":              s.BaseURL,
		p + "rules":                 s.Rules,
		p + "search_path":           s.SearchPath,
		p + "token_field":           s.TokenField,
		p + "no_results_selector":   s.NoResultsSelector,
		p + "thread_link_selector":  s.ThreadLinkSelector,
		p + "required_cookies":      s.RequiredCookies,
		p + "login.script_path":     s.Login.ScriptPath,
		p + "login.client_id_expr":  s.Login.ClientIDExpr,
		p + "login.client_id_field": s.Login.ClientIDField,
		p + "login.login_path":      s.Login.LoginPath,
		p + "login.session_cookie":  s.Login.SessionCookie,
		p + "login.user_cookie":     s.Login.UserCookie,
		p + "index_host":            s.IndexHost,
		p + "index_endpoint":        s.IndexEndpoint,
		p + "index_language":        s.IndexLanguage,
		p + "result_xpath":          s.ResultXPath,
		p + "exclude_segment":       s.ExcludeSegment,
		p + "max_offset":            s.MaxOffset,
		p + "rate_limit_rps":        s.RateLimitRPS,
	}
}
