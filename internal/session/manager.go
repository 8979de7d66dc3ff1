// Package session owns every network request a crawl makes: the cookie jar
// and headers produced by authentication, proxy rotation with a bounded retry
// budget, and the concurrent fan-out fetch used for thread pages.
//
// A Manager belongs to exactly one crawler. Its proxy cursor is mutex guarded
// so FetchMany goroutines can share it, but its authentication state is not
// meant to be shared across crawlers.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/internal/proxy"
	"github.com/law-makers/forumgrep/internal/ratelimit"
	"github.com/law-makers/forumgrep/internal/retry"
	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"
)

// Default values used when Options leaves them unset.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultSearchPath = "/search/search"
	DefaultTokenField = "_xfToken"
)

// Options configures a Manager. BaseURL is required; everything else has a
// usable zero value.
type Options struct {
	BaseURL    string
	SearchPath string
	TokenField string

	Handshake Handshake
	Proxies   *proxy.Pool
	Limiter   *ratelimit.HostLimiter

	UserAgents []string
	Headers    map[string]string
	Timeout    time.Duration

	// Cache, when set, serves repeated fetches of the same URL
	Cache PageCache
	// Concurrency caps FetchMany goroutines; zero means one per URL
	Concurrency int

	// Retry is the per-page budget. The zero value means retry.FetchConfig.
	Retry retry.Config
}

// PageCache stores fetched pages by URL.
type PageCache interface {
	Get(url string) (models.Page, bool)
	Set(url string, page models.Page)
}

// Manager performs authenticated, proxy-rotating requests for one crawler.
type Manager struct {
	opts   Options
	base   *url.URL
	client *http.Client
	jar    *cookiejar.Jar

	authOnce sync.Once
	state    State
	authErr  error
}

// New creates a Manager.
func New(opts Options) (*Manager, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	if opts.SearchPath == "" {
		opts.SearchPath = DefaultSearchPath
	}
	if opts.TokenField == "" {
		opts.TokenField = DefaultTokenField
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.FetchConfig()
	}
	if opts.Handshake == nil {
		opts.Handshake = CookieHandshake{}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Manager{
		opts: opts,
		base: base,
		jar:  jar,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: newTransport(),
			Jar:       jar,
		},
	}, nil
}

// BaseURL returns the site root all relative links resolve against.
func (m *Manager) BaseURL() *url.URL {
	u := *m.base
	return &u
}

// Close releases idle keep-alive connections.
func (m *Manager) Close() {
	m.client.CloseIdleConnections()
}

// State returns a copy of the authenticated state.
func (m *Manager) State() State {
	return m.state.Clone()
}

// Authenticate runs the configured handshake. The handshake executes at most
// once per Manager; later calls return the first outcome. Transient transport
// failures rerun the whole handshake within the handshake retry budget.
func (m *Manager) Authenticate(ctx context.Context, creds models.Credentials) (State, error) {
	m.authOnce.Do(func() {
		log.Debug().
			Str("site", m.base.Host).
			Str("handshake", m.opts.Handshake.Name()).
			Msg("Authenticating")

		var state State
		err := retry.Do(ctx, retry.HandshakeConfig(), func(attempt int) error {
			s, err := m.opts.Handshake.Run(ctx, m, creds)
			if err != nil {
				var engineErr *engine.Error
				if errors.As(err, &engineErr) {
					return retry.Permanent(err)
				}
				return err
			}
			state = s
			return nil
		})
		if err != nil {
			m.authErr = err
			return
		}

		if state.Headers == nil {
			state.Headers = http.Header{}
		}
		for k, v := range creds.Headers {
			state.Headers.Set(k, v)
		}
		m.state = state.Clone()

		log.Debug().
			Strs("cookies", state.CookieNames()).
			Msg("Authenticated")
	})
	return m.State(), m.authErr
}

// Fetch downloads one page, advancing the proxy cursor on every transport
// error or non-2xx status, up to the retry budget. ok is false when every
// attempt failed or the body could not be decoded; no error is returned.
// The page's Link is rawURL even when the server redirected.
// Successful pages go through Options.Cache unless NoCache is passed.
func (m *Manager) Fetch(ctx context.Context, rawURL string, opts ...RequestOption) (models.Page, bool) {
	useCache := m.opts.Cache != nil && cacheable(rawURL, opts)
	if useCache {
		if page, ok := m.opts.Cache.Get(rawURL); ok {
			return page, true
		}
	}

	var page models.Page

	err := retry.Do(ctx, m.opts.Retry, func(attempt int) error {
		p := m.nextProxy(ctx)
		body, err := m.get(withProxy(ctx, p), rawURL, opts...)
		if err != nil {
			log.Debug().
				Str("url", rawURL).
				Int("attempt", attempt+1).
				Str("proxy", proxyLabel(p)).
				Err(err).
				Msg("Fetch attempt failed")
			return bodyError(err)
		}
		page = models.Page{Link: rawURL, HTML: body}
		return nil
	})
	if err != nil {
		log.Warn().Str("url", rawURL).Err(err).Msg("Page unavailable")
		return models.Page{}, false
	}

	if useCache {
		m.opts.Cache.Set(rawURL, page)
	}
	return page, true
}

// FetchMany fetches every URL concurrently, one goroutine per URL unless
// Options.Concurrency caps it, and waits for all of them. Failed URLs are
// left out of the result; a failure never cancels the others. Result order
// is unspecified.
func (m *Manager) FetchMany(ctx context.Context, urls []string) []models.Page {
	var (
		mu    sync.Mutex
		pages = make([]models.Page, 0, len(urls))
		g     errgroup.Group
	)
	if m.opts.Concurrency > 0 {
		g.SetLimit(m.opts.Concurrency)
	}

	for _, u := range urls {
		g.Go(func() error {
			page, ok := m.Fetch(ctx, u)
			if !ok {
				return nil
			}
			mu.Lock()
			pages = append(pages, page)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().
		Int("requested", len(urls)).
		Int("fetched", len(pages)).
		Msg("Fan-out fetch complete")

	return pages
}

// RequestSearch submits term to the forum's own search endpoint. The CSRF
// token is scraped from a freshly fetched base page; its absence means the
// session is not authenticated.
func (m *Manager) RequestSearch(ctx context.Context, term string) (models.Page, error) {
	baseURL := m.base.String()

	var token string
	err := retry.Do(ctx, retry.HandshakeConfig(), func(attempt int) error {
		resp, err := m.do(m.proxied(ctx), http.MethodGet, baseURL, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.Permanent(engine.ServerDown(baseURL, resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.NewHTTPError(resp)
		}

		body, err := readBody(resp)
		if err != nil {
			return bodyError(err)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to parse %s: %w", baseURL, err))
		}

		value, exists := doc.Find(fmt.Sprintf("input[name=%q]", m.opts.TokenField)).First().Attr("value")
		if !exists {
			return retry.Permanent(engine.Unauthorized(baseURL))
		}
		token = value
		return nil
	})
	if err != nil {
		return models.Page{}, err
	}

	form := url.Values{}
	form.Set("keywords", term)
	form.Set(m.opts.TokenField, token)
	searchURL := baseURL + m.opts.SearchPath

	var page models.Page
	err = retry.Do(ctx, retry.HandshakeConfig(), func(attempt int) error {
		resp, err := m.do(m.proxied(ctx), http.MethodPost, searchURL, strings.NewReader(form.Encode()),
			WithHeader("Content-Type", "application/x-www-form-urlencoded"))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.Permanent(engine.ServerDown(searchURL, resp.StatusCode))
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return retry.Permanent(engine.Unauthorized(searchURL))
		}

		body, err := readBody(resp)
		if err != nil {
			return bodyError(err)
		}
		page = models.Page{Link: resp.Request.URL.String(), HTML: body}
		return nil
	})
	if err != nil {
		return models.Page{}, err
	}

	log.Debug().
		Str("term", term).
		Str("url", page.Link).
		Int("bytes", len(page.HTML)).
		Msg("Forum search submitted")

	return page, nil
}

// get performs one GET and returns the decoded body.
func (m *Manager) get(ctx context.Context, rawURL string, opts ...RequestOption) ([]byte, error) {
	resp, err := m.do(ctx, http.MethodGet, rawURL, nil, opts...)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, retry.NewHTTPError(resp)
	}

	return readBody(resp)
}

// do sends a request with the session headers, waiting for the host limiter.
func (m *Manager) do(ctx context.Context, method, rawURL string, body io.Reader, opts ...RequestOption) (*http.Response, error) {
	if err := m.opts.Limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", m.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	for key, value := range m.opts.Headers {
		req.Header.Set(key, value)
	}
	for key, values := range m.state.Headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	for _, opt := range opts {
		opt(req)
	}

	return m.client.Do(req)
}

func (m *Manager) proxied(ctx context.Context) context.Context {
	return withProxy(ctx, m.nextProxy(ctx))
}

func (m *Manager) nextProxy(ctx context.Context) *url.URL {
	if m.opts.Proxies == nil {
		return nil
	}
	return m.opts.Proxies.Next(ctx)
}

func (m *Manager) userAgent() string {
	if len(m.opts.UserAgents) == 0 {
		return DefaultUserAgent
	}
	return m.opts.UserAgents[rand.IntN(len(m.opts.UserAgents))]
}

// setCookies installs cookies for the base URL.
func (m *Manager) setCookies(cookies []*http.Cookie) {
	m.jar.SetCookies(m.base, cookies)
}

// cookies returns the jar's cookies for the base URL by name.
func (m *Manager) cookies() map[string]string {
	out := make(map[string]string)
	for _, c := range m.jar.Cookies(m.base) {
		out[c.Name] = c.Value
	}
	return out
}

// resolve turns a site-relative path into an absolute URL.
func (m *Manager) resolve(ref string) string {
	u, err := m.base.Parse(ref)
	if err != nil {
		return m.base.String() + ref
	}
	return u.String()
}

// DefaultUserAgent is sent when no user agent list is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0"

func proxyLabel(u *url.URL) string {
	if u == nil {
		return "direct"
	}
	return u.Host
}


// bodyError stops retrying on a body that no attempt could decode.
func bodyError(err error) error {
	if errors.Is(err, errUndecodable) {
		return retry.Permanent(err)
	}
	return err
}
