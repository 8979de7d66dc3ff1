// internal/cli/root.go
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/forumgrep/internal/app"
	"github.com/law-makers/forumgrep/internal/config"
	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/internal/ui"
)

// Exit codes
const (
	ExitOK = 0
	// ExitError covers usage, configuration and crawl failures
	ExitError = 1
	// ExitServerDown means the target site answered with server errors,
	// the CLI counterpart of a 502 from an upstream
	ExitServerDown = 2
	// ExitAuth means the site rejected the session
	ExitAuth = 3
	// ExitInterrupted follows the shell convention for SIGINT
	ExitInterrupted = 130
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forumgrep",
	Short: "Search forums for keywords and export every matching message",
	Long: `forumgrep runs keyword searches against discussion forums, either through the
forum's own search (after logging in) or through a site-restricted web search,
and exports every message that mentions a keyword with its author, timestamp
and link.

Sites are configured as data: built-in presets cover bhf and lolz, and more
can be added under "sites" in the config file.`,
	Version:       "0.1.0",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and runs it. The
// returned value is the process exit code. This is called by main.main().
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first interrupt cancels the search and flushes rows found so far;
	// a second one kills the process.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			stop()
			log.Warn().Msg("Interrupt received, shutting down gracefully...")
		case <-done:
		}
	}()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintln(os.Stderr, ui.Error("Error: "+err.Error()))
	return exitCode(ctx, err)
}

func exitCode(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, engine.ErrServerIsDown):
		return ExitServerDown
	case errors.Is(err, engine.ErrUnauthorized), errors.Is(err, engine.ErrAuthentication):
		return ExitAuth
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitError
	}
}

func init() {
	config.RegisterFlags(rootCmd)

	rootCmd.Flags().BoolP("help", "h", false, "Help for forumgrep")
	rootCmd.Flags().Bool("version", false, "Version for forumgrep")

	// Disable the default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetHelpFunc(customHelpFunc)
	rootCmd.SetUsageFunc(customUsageFunc)

	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetApp(cmd) != nil {
			return nil
		}

		cfg, err := config.Load(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if cfg.JSONLog {
			ui.SetEnabled(false)
		}
		log.Debug().
			Str("command", cmd.CommandPath()).
			Str("config", cfg.ConfigFile).
			Str("store", a.Store.Backend()).
			Msg("Configuration loaded")

		SetApp(cmd, a)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		a := GetApp(cmd)
		if a == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), a.Config.HTTPTimeout)
		defer cancel()
		_ = a.Close(ctx)
		SetApp(cmd, nil)
	}
}
