package config

import (
	"fmt"
	"strings"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/law-makers/forumgrep/internal/utils/headers"
)

// ConfigFileName is looked up under the XDG config directories when no
// --config flag is given.
const ConfigFileName = "forumgrep/config.yaml"

// Load builds a Config by combining defaults, an optional config file, environment variables, and CLI flags.
// Caller should pass the executing *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for key, name := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	path := v.GetString("config")
	if path == "" {
		if found, err := xdg.SearchConfigFile(ConfigFileName); err == nil {
			path = found
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Config file loaded")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFile = path

	switch {
	case v.GetBool("verbose"):
		cfg.LogLevel = "debug"
	case v.GetBool("quiet"):
		cfg.LogLevel = "error"
	}

	cfg.Proxies = splitList(cfg.Proxies)
	cfg.UserAgents = splitList(cfg.UserAgents)

	if cmd != nil {
		if err := applyHeaderFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("json", DefaultJSONLog)
	v.SetDefault("timeout", DefaultHTTPTimeout)
	v.SetDefault("fetch_attempts", DefaultFetchAttempts)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("cache_ttl", DefaultCacheTTL)
	v.SetDefault("cache_max_bytes", DefaultCacheMaxBytes)
	v.SetDefault("proxy_refresh", DefaultProxyRefresh)
	v.SetDefault("rate_limit_rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit_burst", DefaultRateLimitBurst)
	v.SetDefault("site", DefaultSite)
	v.SetDefault("max_pages", DefaultMaxPages)
	v.SetDefault("format", DefaultFormat)
	v.SetDefault("login_timeout", DefaultLoginTimeout)

	for name, site := range DefaultSites() {
		for key, value := range siteDefaults(name, site) {
			v.SetDefault(key, value)
		}
	}
}

func applyHeaderFlags(cmd *cobra.Command, cfg *Config) error {
	f := cmd.Flags().Lookup("header")
	if f == nil || !f.Changed {
		return nil
	}
	raw, err := cmd.Flags().GetStringArray("header")
	if err != nil {
		return err
	}
	parsed, err := headers.Parse(raw)
	if err != nil {
		return err
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string, len(parsed))
	}
	for name, value := range parsed {
		cfg.Headers[name] = value
	}
	return nil
}

// splitList flattens comma-separated entries, which is how lists arrive from
// environment variables.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
