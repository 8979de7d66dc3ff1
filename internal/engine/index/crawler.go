// Package index implements the external-index search strategy: result URLs
// come from a search engine query restricted to the target site, and each
// result is fetched on its own without authenticating.
package index

import (
	"context"
	"iter"

	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/internal/engine/extract"
	"github.com/law-makers/forumgrep/internal/session"
	"github.com/law-makers/forumgrep/internal/utils/url"
	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/rs/zerolog/log"
)

// Index returns result URLs for a query. An unavailable or empty result page
// is reported as no links and a nil error, which ends the walk.
type Index interface {
	Results(ctx context.Context, query string, offset int) ([]string, error)
	PageSize() int
}

// Fetcher downloads a single page. ok is false when the page is unavailable.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts ...session.RequestOption) (models.Page, bool)
}

// Config describes the site searched through the index.
type Config struct {
	Name string
	// Host is used in the site-restricted query qualifier
	Host string
	// ExcludeSegment drops results with this path segment, e.g. section
	// listings that are not individual threads
	ExcludeSegment string
	// MaxOffset is the result offset at which the walk stops
	MaxOffset int
}

// Defaults for Config.
const (
	DefaultExcludeSegment = "forums"
	DefaultMaxOffset      = 1_000_000
)

// Crawler searches a site through an external index.
type Crawler struct {
	cfg     Config
	index   Index
	fetcher Fetcher
	scraper *extract.Scraper
}

// New creates an index Crawler.
func New(idx Index, fetcher Fetcher, scraper *extract.Scraper, cfg Config) *Crawler {
	if cfg.ExcludeSegment == "" {
		cfg.ExcludeSegment = DefaultExcludeSegment
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = DefaultMaxOffset
	}
	if cfg.Name == "" {
		cfg.Name = scraper.Rules().Site
	}
	return &Crawler{cfg: cfg, index: idx, fetcher: fetcher, scraper: scraper}
}

// Name returns the site name
func (c *Crawler) Name() string {
	return c.cfg.Name
}

// Messages delegates to the site scraper
func (c *Crawler) Messages(page models.Page, term string) ([]models.Message, error) {
	return c.scraper.Messages(page, term)
}

// Query builds the site-restricted index query for term.
func (c *Crawler) Query(term string) string {
	return `"` + term + `" site:` + c.cfg.Host
}

// Search walks index result pages by offset and yields every result page
// that could be fetched. Results under the excluded path segment are
// skipped, as are results that fail to fetch.
func (c *Crawler) Search(ctx context.Context, req models.SearchRequest) iter.Seq2[models.Page, error] {
	return func(yield func(models.Page, error) bool) {
		logger := log.With().Str("crawler", c.cfg.Name).Str("term", req.Term).Logger()
		stage := func(s engine.Stage) { logger.Debug().Str("stage", string(s)).Msg("Search stage") }

		stage(engine.StageIdle)
		if err := req.Validate(); err != nil {
			yield(models.Page{}, engine.InvalidRequest(err))
			return
		}

		query := c.Query(req.Term)
		policy := engine.NewPagination(req)
		step := c.index.PageSize()
		if step <= 0 {
			step = 10
		}
		seen := make(map[string]bool)

		stage(engine.StageSeeding)
		for offset, visited := 0, 0; offset < c.cfg.MaxOffset; offset += step {
			links, err := c.index.Results(ctx, query, offset)
			if err != nil {
				yield(models.Page{}, err)
				return
			}
			visited++

			if len(links) == 0 {
				logger.Debug().Int("offset", offset).Msg("Index page has no results, stopping")
				break
			}

			stage(engine.StageFetching)
			for _, link := range links {
				if seen[link] {
					continue
				}
				seen[link] = true

				if urlutil.HasSegment(link, c.cfg.ExcludeSegment) {
					logger.Debug().Str("url", link).Msg("Skipping excluded result")
					continue
				}

				page, ok := c.fetcher.Fetch(ctx, link)
				if !ok {
					logger.Warn().Str("url", link).Msg("Skipping unavailable result")
					continue
				}
				if !yield(page, nil) {
					return
				}
			}

			if !policy.Continue(visited) {
				break
			}
			stage(engine.StagePaginating)
		}

		stage(engine.StageDone)
	}
}
