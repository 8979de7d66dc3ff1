package index

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/law-makers/forumgrep/internal/session"
	"github.com/law-makers/forumgrep/internal/utils/url"
	"github.com/rs/zerolog/log"
)

// Google result page defaults.
const (
	DefaultGoogleEndpoint = "https://www.google.com/search"
	DefaultGoogleLanguage = "en"
	GoogleResultsPerPage  = 10

	// DefaultResultXPath matches organic result anchors in both the classic
	// ("div.r") and current ("div.yuRUbf") layouts, plus the redirect links of
	// the basic HTML page.
	DefaultResultXPath = `//div[contains(concat(' ', normalize-space(@class), ' '), ' r ') or contains(@class, 'yuRUbf')]//a[@href]` +
		` | //a[starts-with(@href, '/url?')]`
)

// GoogleIndex queries Google through a session fetcher, so result pages go
// through the same proxy rotation and retry budget as forum pages.
type GoogleIndex struct {
	fetcher  Fetcher
	endpoint string
	language string
	xpath    string
	host     string
}

// GoogleOption configures a GoogleIndex.
type GoogleOption func(*GoogleIndex)

// WithEndpoint overrides the search URL, mainly for tests and mirrors.
func WithEndpoint(endpoint string) GoogleOption {
	return func(g *GoogleIndex) { g.endpoint = endpoint }
}

// WithResultXPath overrides the result link XPath.
func WithResultXPath(xpath string) GoogleOption {
	return func(g *GoogleIndex) { g.xpath = xpath }
}

// WithLanguage sets the interface language parameter.
func WithLanguage(lang string) GoogleOption {
	return func(g *GoogleIndex) { g.language = lang }
}

// NewGoogleIndex creates an index whose results are restricted to links on
// host.
func NewGoogleIndex(fetcher Fetcher, host string, opts ...GoogleOption) *GoogleIndex {
	g := &GoogleIndex{
		fetcher:  fetcher,
		endpoint: DefaultGoogleEndpoint,
		language: DefaultGoogleLanguage,
		xpath:    DefaultResultXPath,
		host:     strings.ToLower(host),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// PageSize is the offset step between result pages
func (g *GoogleIndex) PageSize() int {
	return GoogleResultsPerPage
}

// SearchURL builds the result page URL for query at offset.
func (g *GoogleIndex) SearchURL(query string, offset int) string {
	v := url.Values{}
	v.Set("hl", g.language)
	v.Set("q", query)
	v.Set("start", strconv.Itoa(offset))
	return g.endpoint + "?" + v.Encode()
}

// Results fetches one result page and returns the result links on host.
func (g *GoogleIndex) Results(ctx context.Context, query string, offset int) ([]string, error) {
	searchURL := g.SearchURL(query, offset)

	page, ok := g.fetcher.Fetch(ctx, searchURL, session.CloseConnection(), session.NoCache())
	if !ok || page.Empty() {
		log.Warn().Str("url", searchURL).Msg("Index page unavailable")
		return nil, nil
	}

	links, err := g.parse(page.HTML)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("offset", offset).
		Int("links", len(links)).
		Msg("Index page parsed")
	return links, nil
}

func (g *GoogleIndex) parse(html []byte) ([]string, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(html))
	if err != nil {
		// An unparseable page is treated like an empty one
		log.Debug().Err(err).Msg("Failed to parse index page")
		return nil, nil
	}

	nodes, err := htmlquery.QueryAll(doc, g.xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid result xpath %q: %w", g.xpath, err)
	}

	seen := make(map[string]bool)
	var links []string
	for _, n := range nodes {
		link := urlutil.UnwrapRedirect(htmlquery.SelectAttr(n, "href"))
		if !g.onHost(link) || seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links, nil
}

func (g *GoogleIndex) onHost(link string) bool {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if g.host == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host == g.host || strings.HasSuffix(host, "."+g.host)
}
