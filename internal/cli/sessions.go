// internal/cli/sessions.go
package cli

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/forumgrep/internal/ui"
	"github.com/law-makers/forumgrep/pkg/models"
)

var forceDelete bool

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored site sessions",
	Long: `List, view, import and delete stored site credentials.

Credentials live in your OS keyring, or in 0600 files under the XDG data
directory where no keyring is available. Cookie values and passwords are never
printed.`,
	Example: `  # List all stored sessions
  forumgrep sessions list

  # View details of a session
  forumgrep sessions view bhf

  # Delete a session
  forumgrep sessions delete bhf`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsViewCmd = &cobra.Command{
	Use:   "view <site>",
	Short: "View details of a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsView,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <site>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsViewCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsDeleteCmd.Flags().BoolVarP(&forceDelete, "yes", "y", false, "Delete without confirmation")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	sites, err := a.Store.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	sort.Strings(sites)

	w := cmd.OutOrStdout()
	if len(sites) == 0 {
		fmt.Fprintln(w, "\nNo stored sessions found.")
		fmt.Fprintln(w, "\nCreate one with:")
		fmt.Fprintln(w, "  forumgrep login <site>")
		fmt.Fprintln(w)
		return nil
	}

	fmt.Fprintf(w, "\n📋 Stored Sessions (%d) in %s\n", len(sites), a.Store.Backend())
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	for i, site := range sites {
		fmt.Fprintf(w, "\n%d. %s\n", i+1, ui.Bold(site))

		creds, err := a.Store.Inspect(site)
		if err != nil {
			fmt.Fprintf(w, "   ⚠️  Error loading: %v\n", err)
			continue
		}
		fmt.Fprintf(w, "   Cookies: %d\n", len(creds.Cookies))
		if creds.Username != "" {
			fmt.Fprintf(w, "   User:    %s\n", creds.Username)
		}
		fmt.Fprintf(w, "   Created: %s\n", creds.CreatedAt.Format(time.RFC1123))
		fmt.Fprintf(w, "   Status:  %s\n", expiryStatus(creds, time.Now()))
	}

	fmt.Fprintln(w)
	return nil
}

func runSessionsView(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	site := strings.ToLower(args[0])
	creds, err := a.Store.Inspect(site)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", site, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n🔍 Session Details: %s\n", site)
	fmt.Fprintln(w, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Site:     %s\n", creds.Site)
	if creds.Username != "" {
		fmt.Fprintf(w, "User:     %s\n", creds.Username)
		fmt.Fprintf(w, "Password: %s\n", mask(creds.Password))
	}
	fmt.Fprintf(w, "Created:  %s\n", creds.CreatedAt.Format(time.RFC1123))
	if !creds.ExpiresAt.IsZero() {
		fmt.Fprintf(w, "Expires:  %s\n", creds.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Fprintf(w, "Status:   %s\n", expiryStatus(creds, time.Now()))

	fmt.Fprintf(w, "\nCookies (%d):\n", len(creds.Cookies))
	for _, c := range creds.Cookies {
		fmt.Fprintf(w, "  • %s (domain: %s) %s\n", c.Name, c.Domain, mask(c.Value))
	}

	if len(creds.Headers) > 0 {
		fmt.Fprintf(w, "\nCustom Headers (%d):\n", len(creds.Headers))
		for key, value := range creds.Headers {
			fmt.Fprintf(w, "  • %s: %s\n", key, mask(value))
		}
	}

	fmt.Fprintln(w)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	site := strings.ToLower(args[0])
	if !forceDelete && !confirm(bufio.NewReader(os.Stdin), fmt.Sprintf("\n⚠️  Delete session '%s'?", site)) {
		fmt.Fprintln(os.Stderr, "Cancelled.")
		return nil
	}

	if err := a.Store.Delete(site); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n✓ Session '%s' deleted successfully.\n\n", site)
	return nil
}

func expiryStatus(creds models.Credentials, now time.Time) string {
	switch {
	case creds.ExpiresAt.IsZero():
		return "✓ Valid (no expiry)"
	case creds.Expired(now):
		return fmt.Sprintf("⚠️  Expired (%s ago)", now.Sub(creds.ExpiresAt).Round(time.Hour))
	default:
		return fmt.Sprintf("✓ Valid (expires in %s)", creds.ExpiresAt.Sub(now).Round(time.Hour))
	}
}

// mask hides a secret, keeping only its length visible.
func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return ui.Dim(fmt.Sprintf("[%d chars hidden]", len(secret)))
}
