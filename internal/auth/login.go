// internal/auth/login.go
package auth

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/rs/zerolog/log"
)

// BrowserLoginOptions configures the interactive login
type BrowserLoginOptions struct {
	// Site is the name the captured credentials are stored under
	Site string
	// URL to open for login
	URL string
	// RequiredCookies are polled for; login completes once all are set.
	// Typical values are the forum user cookie and cf_clearance.
	RequiredCookies []string
	// WaitSelector, when set, must also become visible
	WaitSelector string
	// Timeout for the entire login process
	Timeout time.Duration
	// ChromePath overrides browser discovery
	ChromePath string
	// UserAgent is sent by the browser. Cloudflare binds cf_clearance to it,
	// so it should match the crawler's user agent.
	UserAgent string
	Headers   map[string]string
}

// cookiePollInterval is how often the browser's cookies are checked
const cookiePollInterval = time.Second

// BrowserLogin opens a visible browser at opts.URL, waits for the user to
// log in (and pass any challenge page), then captures the site cookies.
func BrowserLogin(ctx context.Context, opts BrowserLoginOptions) (models.Credentials, error) {
	if opts.Site == "" {
		return models.Credentials{}, fmt.Errorf("site is required")
	}
	if opts.URL == "" {
		return models.Credentials{}, fmt.Errorf("URL is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}

	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return models.Credentials{}, fmt.Errorf("browser login requires a display server (DISPLAY not set)\n\n" +
			"💡 In headless environments, export the cookies from your browser's DevTools and run:\n" +
			"   forumgrep sessions import <site> --file cookies.json")
	}

	log.Info().
		Str("site", opts.Site).
		Str("url", opts.URL).
		Strs("required_cookies", opts.RequiredCookies).
		Msg("Starting browser login")

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	allocOpts := append(slices.Clone(chromedp.DefaultExecAllocatorOptions[:]),
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 720),
	)
	if path := FindBrowser(opts.ChromePath); path != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(path))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))
	defer browserCancel()

	fmt.Println("\n🌐 Browser opened. Please log in to the forum.")
	fmt.Println("   The browser will close automatically once the session cookies are set.")

	if err := chromedp.Run(browserCtx, network.Enable(), chromedp.Navigate(opts.URL)); err != nil {
		return models.Credentials{}, fmt.Errorf("failed to navigate: %w", err)
	}

	if opts.WaitSelector != "" {
		log.Info().Str("selector", opts.WaitSelector).Msg("Waiting for login completion...")
		if err := chromedp.Run(browserCtx, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery)); err != nil {
			return models.Credentials{}, fmt.Errorf("login timeout or failed: %w", err)
		}
	}

	cookies, err := waitForCookies(browserCtx, opts.URL, opts.RequiredCookies)
	if err != nil {
		return models.Credentials{}, err
	}

	log.Info().Int("cookie_count", len(cookies)).Msg("Cookies extracted")
	fmt.Printf("\n✓ Successfully captured %d cookies\n", len(cookies))

	return credentialsFromCookies(opts.Site, cookies, opts.Headers), nil
}

// waitForCookies polls the browser until every required cookie is set. With
// no required cookies it returns the first non-empty cookie set.
func waitForCookies(ctx context.Context, pageURL string, required []string) ([]*network.Cookie, error) {
	ticker := time.NewTicker(cookiePollInterval)
	defer ticker.Stop()

	for {
		var cookies []*network.Cookie
		err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithURLs([]string{pageURL}).Do(ctx)
			return err
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to extract cookies: %w", err)
		}

		if len(cookies) > 0 && hasCookies(cookies, required) {
			return cookies, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("login timed out waiting for cookies %v: %w", required, ctx.Err())
		case <-ticker.C:
		}
	}
}

func hasCookies(cookies []*network.Cookie, required []string) bool {
	for _, name := range required {
		found := slices.ContainsFunc(cookies, func(c *network.Cookie) bool {
			return c.Name == name && c.Value != ""
		})
		if !found {
			return false
		}
	}
	return true
}

// credentialsFromCookies converts captured browser cookies.
func credentialsFromCookies(site string, cookies []*network.Cookie, headers map[string]string) models.Credentials {
	converted := make([]models.Cookie, 0, len(cookies))
	for _, c := range cookies {
		converted = append(converted, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return NewCredentials(site, converted, headers)
}
