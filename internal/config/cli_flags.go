package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Write logs as JSON")
	cmd.PersistentFlags().StringSlice("proxy", nil, "Proxy to rotate through, repeatable (http, https or socks5)")
	cmd.PersistentFlags().String("proxy-list", "", "URL of a newline-separated proxy list, refreshed periodically")
	cmd.PersistentFlags().Duration("timeout", DefaultHTTPTimeout, "Per-request timeout")
	cmd.PersistentFlags().StringSlice("user-agent", nil, "User agent to rotate through, repeatable")
	cmd.PersistentFlags().StringArray("header", nil, "Extra request header as \"Name: value\", repeatable")
	cmd.PersistentFlags().Float64("rate-limit", DefaultRateLimitRPS, "Requests per second per host (0 disables)")
	cmd.PersistentFlags().String("site", DefaultSite, "Site to search")
	cmd.PersistentFlags().String("config", "", "Path to configuration file (optional)")
}

// flagKeys maps config keys to the flags that override them.
var flagKeys = map[string]string{
	"json":           "json",
	"proxies":        "proxy",
	"proxy_list":     "proxy-list",
	"timeout":        "timeout",
	"user_agents":    "user-agent",
	"rate_limit_rps": "rate-limit",
	"site":           "site",
	"config":         "config",
	"verbose":        "verbose",
	"quiet":          "quiet",
}
