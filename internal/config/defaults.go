package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel       = "info"
	DefaultJSONLog        = false
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultFetchAttempts  = 20
	MaxFetchAttempts      = 20
	DefaultRateLimitRPS   = 4.0
	DefaultRateLimitBurst = 8
	DefaultProxyRefresh   = 15 * time.Minute
	DefaultCacheTTL       = 10 * time.Minute
	DefaultCacheMaxBytes  = 64 << 20
	DefaultConcurrency    = 0
	DefaultMaxPages       = 10
	DefaultFormat         = "csv"
	DefaultLoginTimeout   = 5 * time.Minute
	DefaultSite           = "bhf"

	// EnvPrefix namespaces environment overrides, e.g. FORUMGREP_TIMEOUT.
	EnvPrefix = "FORUMGREP"
)
