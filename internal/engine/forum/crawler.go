// Package forum implements the forum-native search strategy: an
// authenticated query against the forum's own search endpoint, a walk over
// the listing pages it returns, and a concurrent fetch of every thread found.
package forum

import (
	"bytes"
	"context"
	"iter"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/internal/engine/extract"
	"github.com/law-makers/forumgrep/internal/session"
	"github.com/law-makers/forumgrep/internal/utils/url"
	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Session is the part of session.Manager the strategy needs.
type Session interface {
	BaseURL() *url.URL
	Authenticate(ctx context.Context, creds models.Credentials) (session.State, error)
	RequestSearch(ctx context.Context, term string) (models.Page, error)
	Fetch(ctx context.Context, rawURL string, opts ...session.RequestOption) (models.Page, bool)
	FetchMany(ctx context.Context, urls []string) []models.Page
}

// Config holds the per-site selectors of a forum search result page.
type Config struct {
	Name               string
	NoResultsSelector  string
	ThreadLinkSelector string
	Credentials        models.Credentials
}

// Defaults for XenForo 2 search result pages.
const (
	DefaultNoResultsSelector  = `div[uix_component="MainContent"] div.blockMessage`
	DefaultThreadLinkSelector = `a[href^="/thread"]`
)

// Crawler searches a forum through its own search endpoint.
type Crawler struct {
	cfg     Config
	session Session
	scraper *extract.Scraper
}

// New creates a forum Crawler.
func New(s Session, scraper *extract.Scraper, cfg Config) *Crawler {
	if cfg.NoResultsSelector == "" {
		cfg.NoResultsSelector = DefaultNoResultsSelector
	}
	if cfg.ThreadLinkSelector == "" {
		cfg.ThreadLinkSelector = DefaultThreadLinkSelector
	}
	if cfg.Name == "" {
		cfg.Name = scraper.Rules().Site
	}
	return &Crawler{cfg: cfg, session: s, scraper: scraper}
}

// Name returns the site name
func (c *Crawler) Name() string {
	return c.cfg.Name
}

// Messages delegates to the site scraper
func (c *Crawler) Messages(page models.Page, term string) ([]models.Message, error) {
	return c.scraper.Messages(page, term)
}

// Search authenticates (once per Crawler), submits the term, collects thread
// links over the listing pages allowed by the request and yields the thread
// pages. A "no results" marker yields engine.ErrNoSearchResults.
func (c *Crawler) Search(ctx context.Context, req models.SearchRequest) iter.Seq2[models.Page, error] {
	return func(yield func(models.Page, error) bool) {
		logger := log.With().Str("crawler", c.cfg.Name).Str("term", req.Term).Logger()
		stage := func(s engine.Stage) { logger.Debug().Str("stage", string(s)).Msg("Search stage") }

		stage(engine.StageIdle)
		if err := req.Validate(); err != nil {
			yield(models.Page{}, engine.InvalidRequest(err))
			return
		}

		stage(engine.StageAuthenticating)
		if _, err := c.session.Authenticate(ctx, c.cfg.Credentials); err != nil {
			yield(models.Page{}, err)
			return
		}

		stage(engine.StageSeeding)
		results, err := c.session.RequestSearch(ctx, req.Term)
		if err != nil {
			yield(models.Page{}, err)
			return
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(results.HTML))
		if err != nil {
			yield(models.Page{}, &engine.MalformedPageError{URL: results.Link, Field: "search results", Err: err})
			return
		}
		if doc.Find(c.cfg.NoResultsSelector).Length() > 0 {
			logger.Info().Msg("Nothing found")
			stage(engine.StageDone)
			yield(models.Page{}, engine.NoSearchResults(req.Term))
			return
		}

		stage(engine.StagePaginating)
		links := c.listingLinks(ctx, doc, req, logger)

		stage(engine.StageFetching)
		logger.Debug().Int("threads", len(links)).Msg("Fetching threads")
		for _, page := range c.session.FetchMany(ctx, links) {
			if !yield(page, nil) {
				return
			}
		}

		stage(engine.StageDone)
	}
}

// listingLinks walks the listing pages starting at doc and returns the
// resolved, de-duplicated thread links found on all of them.
func (c *Crawler) listingLinks(ctx context.Context, doc *goquery.Document, req models.SearchRequest, logger zerolog.Logger) []string {
	base := c.session.BaseURL().String()
	policy := engine.NewPagination(req)

	hrefs := c.threadLinks(doc)
	visited := 1

	for {
		next, ok := policy.Next(doc, visited)
		if !ok {
			break
		}

		nextURL := urlutil.ResolveURL(base, next)
		page, ok := c.session.Fetch(ctx, nextURL)
		if !ok {
			logger.Warn().Str("url", nextURL).Msg("Listing page unavailable, stopping pagination")
			break
		}
		visited++

		var err error
		doc, err = goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
		if err != nil {
			logger.Warn().Str("url", nextURL).Err(err).Msg("Unparseable listing page, stopping pagination")
			break
		}
		hrefs = append(hrefs, c.threadLinks(doc)...)
	}

	logger.Debug().Int("listing_pages", visited).Int("links", len(hrefs)).Msg("Pagination complete")
	return urlutil.ResolveAll(base, hrefs)
}

func (c *Crawler) threadLinks(doc *goquery.Document) []string {
	var hrefs []string
	doc.Find(c.cfg.ThreadLinkSelector).Each(func(i int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}
