// internal/cli/login.go
package cli

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/law-makers/forumgrep/internal/auth"
	"github.com/law-makers/forumgrep/internal/session"
	"github.com/law-makers/forumgrep/internal/ui"
	"github.com/law-makers/forumgrep/pkg/models"
)

var (
	loginUsername string
	loginBrowser  bool
	loginURL      string
	waitSelector  string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [site]",
	Short: "Log in to a site and store the session",
	Long: `Authenticates against a site and stores the resulting session cookies in your
OS keyring (or a 0600 file under the XDG data directory when no keyring is
available).

With --username, the site's login handshake is run directly; the password is
prompted for without echo, or read from stdin when it is not a terminal.

With --browser, a visible browser window opens for you to log in manually,
which also gets through challenge pages. Cookies are captured once the
site's required cookies are set.`,
	Example: `  # Log in with a username and password
  forumgrep login bhf --username alice

  # Log in through a browser window
  forumgrep login bhf --browser

  # Wait for an element that only appears when logged in
  forumgrep login bhf --browser --wait "a.p-navgroup-link--user"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username for the login handshake")
	loginCmd.Flags().BoolVarP(&loginBrowser, "browser", "b", false, "Log in through a browser window")
	loginCmd.Flags().StringVar(&loginURL, "url", "", "Page to open in the browser (default site base URL)")
	loginCmd.Flags().StringVarP(&waitSelector, "wait", "w", "", "CSS selector to wait for after login")
	loginCmd.MarkFlagsMutuallyExclusive("username", "browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	name := siteFlag(cmd)
	if len(args) == 1 {
		name = args[0]
	}
	name, site, err := a.Config.Site(name)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", ui.Bold("🔐 Login"))
	fmt.Fprintf(os.Stderr, "%s\n\n", ui.Dim("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Fprintf(os.Stderr, "  %s %s\n", ui.Bold("Site:"), ui.Style(name, ui.ColorWhite))
	fmt.Fprintf(os.Stderr, "  %s %s\n\n", ui.Bold("URL:"), ui.Style(site.BaseURL, ui.ColorWhite))

	var creds models.Credentials
	if loginBrowser {
		pageURL := loginURL
		if pageURL == "" {
			pageURL = site.BaseURL
		}
		userAgent := session.DefaultUserAgent
		if len(a.Config.UserAgents) > 0 {
			userAgent = a.Config.UserAgents[0]
		}

		creds, err = auth.BrowserLogin(cmd.Context(), auth.BrowserLoginOptions{
			Site:            name,
			URL:             pageURL,
			RequiredCookies: site.RequiredCookies,
			WaitSelector:    waitSelector,
			Timeout:         a.Config.LoginTimeout,
			ChromePath:      a.Config.ChromePath,
			UserAgent:       userAgent,
			Headers:         a.Config.Headers,
		})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	} else {
		in := bufio.NewReader(os.Stdin)
		username := loginUsername
		if username == "" {
			if username, err = readLine(in, "Username: "); err != nil {
				return err
			}
		}
		password, err := readSecret(in, "Password: ")
		if err != nil {
			return err
		}
		if username == "" || password == "" {
			return fmt.Errorf("username and password are required")
		}

		creds, err = a.Login(cmd.Context(), name, models.Credentials{Username: username, Password: password})
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	log.Debug().Str("site", name).Str("backend", a.Store.Backend()).Msg("Saving credentials")
	if err := a.Store.Save(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintln(os.Stderr, ui.Success("✓ Session saved successfully!"))
	fmt.Fprintf(os.Stderr, "  %s %d\n", ui.Bold("Cookies:"), len(creds.Cookies))
	if !creds.ExpiresAt.IsZero() {
		fmt.Fprintf(os.Stderr, "  %s %s\n", ui.Bold("Expires:"), creds.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Fprintf(os.Stderr, "\n%s\n", ui.Bold("You can now search with:"))
	fmt.Fprintf(os.Stderr, "  %s\n\n", ui.Highlight("forumgrep search --site "+name+" <keyword>"))
	return nil
}
