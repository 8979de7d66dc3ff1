// internal/cli/sessions_import.go
package cli

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/law-makers/forumgrep/internal/auth"
	"github.com/law-makers/forumgrep/internal/ui"
	"github.com/law-makers/forumgrep/pkg/models"
)

var (
	importFormat string
	importFile   string
	importVerify bool
)

// sessionsImportCmd represents the sessions import command
var sessionsImportCmd = &cobra.Command{
	Use:   "import <site>",
	Short: "Import browser cookies as a site session",
	Long: `Import cookies from your browser to create a stored session.

This is useful in headless environments (containers, CI, remote shells) where
the browser login cannot open a window.

Steps:
1. Open the site in your regular browser and log in
2. Open DevTools (F12), Application, Cookies
3. Export or copy the cookies
4. Use this command to import them`,
	Example: `  # Enter cookies one by one
  forumgrep sessions import bhf

  # Import from a cookie editor JSON export
  forumgrep sessions import bhf --format json --file cookies.json

  # Import from Netscape/curl format
  forumgrep sessions import lolz --format netscape < cookies.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsImport,
}

func init() {
	sessionsCmd.AddCommand(sessionsImportCmd)

	sessionsImportCmd.Flags().StringVar(&importFormat, "format", "interactive", "Import format: interactive, json, netscape")
	sessionsImportCmd.Flags().StringVar(&importFile, "file", "", "Read cookies from file instead of stdin")
	sessionsImportCmd.Flags().BoolVar(&importVerify, "verify", true, "Check the site's required cookies are present")
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	a := GetApp(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	name, site, err := a.Config.Site(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n🔐 Import Session: %s\n", name)
	fmt.Fprintf(os.Stderr, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	var in io.Reader = os.Stdin
	if importFile != "" {
		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("failed to open cookies file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var cookies []models.Cookie
	switch importFormat {
	case "interactive":
		cookies, err = importInteractive(bufio.NewReader(in), cookieDomain(site.BaseURL), site.RequiredCookies)
	case "json":
		cookies, err = auth.ParseCookiesJSON(in)
	case "netscape":
		cookies, err = auth.ParseNetscape(in)
	default:
		return fmt.Errorf("unsupported format: %s (use: interactive, json, netscape)", importFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("no cookies imported")
	}

	creds := auth.NewCredentials(name, cookies, nil)
	if importVerify {
		if _, err := a.Login(cmd.Context(), name, creds); err != nil {
			return fmt.Errorf("imported cookies are incomplete: %w", err)
		}
	}

	if err := a.Store.Save(creds); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", ui.Success(fmt.Sprintf("✅ Session '%s' created successfully!", name)))
	fmt.Fprintf(os.Stderr, "   Cookies: %d\n", len(cookies))
	if !creds.ExpiresAt.IsZero() {
		fmt.Fprintf(os.Stderr, "   Expires: %s\n", creds.ExpiresAt.Format(time.RFC1123))
	}
	fmt.Fprintf(os.Stderr, "\nUse with:\n  forumgrep search --site %s <keyword>\n\n", name)
	return nil
}

// importInteractive prompts for cookie names and values until an empty name,
// reminding the user of required cookies still missing.
func importInteractive(in *bufio.Reader, domain string, required []string) ([]models.Cookie, error) {
	fmt.Fprintln(os.Stderr, "📋 Cookie Import Guide:")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "1. Open the site in your browser and log in")
	fmt.Fprintln(os.Stderr, "2. Press F12 to open DevTools")
	fmt.Fprintln(os.Stderr, "3. Go to: Application, Storage, Cookies")
	fmt.Fprintln(os.Stderr, "4. For each cookie below, copy the Name and Value")

	var cookies []models.Cookie
	have := func(name string) bool {
		return slices.ContainsFunc(cookies, func(c models.Cookie) bool { return c.Name == name })
	}

	for {
		fmt.Fprintf(os.Stderr, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		for _, name := range required {
			if !have(name) {
				fmt.Fprintf(os.Stderr, "⚠️  Still need: %s\n", name)
			}
		}

		name, err := readLine(in, "\nCookie Name (or press Enter to finish): ")
		if err != nil || name == "" {
			break
		}

		value, err := readSecret(in, "Cookie Value: ")
		if err != nil {
			return nil, err
		}
		if value == "" {
			fmt.Fprintln(os.Stderr, "⚠️  Skipping cookie with empty value")
			continue
		}

		d, err := readLine(in, fmt.Sprintf("Domain [%s]: ", domain))
		if err != nil || d == "" {
			d = domain
		}

		cookies = append(cookies, models.Cookie{
			Name:     name,
			Value:    value,
			Domain:   d,
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
		})
		fmt.Fprintf(os.Stderr, "✅ Added: %s (domain: %s)\n", name, d)
	}

	fmt.Fprintf(os.Stderr, "\n✅ Total cookies added: %d\n", len(cookies))
	return cookies, nil
}

// cookieDomain is the domain cookies of baseURL are scoped to by default.
func cookieDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return "." + u.Hostname()
}
