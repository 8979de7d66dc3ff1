// internal/engine/batch/runner.go
package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/internal/reqctx"
	"github.com/law-makers/forumgrep/pkg/models"
)

// RowWriter receives exported rows
type RowWriter interface {
	Write(row models.Row) error
}

// Options apply to every keyword of a batch
type Options struct {
	OnePageOnly bool
	MaxPages    int
	// Progress is called after each keyword; may be nil
	Progress func(Event)
}

// Event reports the outcome of one keyword
type Event struct {
	Keyword   string
	Index     int
	Total     int
	Pages     int
	Rows      int
	NoResults bool
}

// Stats summarise a finished or aborted batch
type Stats struct {
	Keywords       int
	NoResults      int
	Pages          int
	Rows           int
	MalformedPages int
}

// Runner searches one crawler for a list of keywords and writes every
// matching message as a row.
type Runner struct {
	crawler engine.Crawler
	writer  RowWriter
	opts    Options
}

// New creates a Runner
func New(crawler engine.Crawler, writer RowWriter, opts Options) *Runner {
	return &Runner{crawler: crawler, writer: writer, opts: opts}
}

// Run processes keywords in order. A keyword without results is skipped, a
// page that does not match the site layout is logged and skipped, and a
// session-level failure (server down, unauthorized, failed login) aborts the
// whole batch.
func (r *Runner) Run(ctx context.Context, keywords []string) (Stats, error) {
	rc := reqctx.GetRequestContext(ctx)
	logger := reqctx.Logger(ctx)

	var stats Stats
	for i, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		kctx := reqctx.WithKeyword(ctx, keyword)
		event, err := r.search(kctx, keyword, &stats)
		event.Index, event.Total = i+1, len(keywords)
		stats.Keywords++

		if err != nil {
			klog := reqctx.Logger(kctx)
			klog.Error().Err(err).Msg("Batch aborted")
			return stats, reqctx.NewRequestError(kctx, err)
		}

		if event.Pages == 0 && !event.NoResults {
			klog := reqctx.Logger(kctx)
			klog.Info().Msg("Nothing found")
		}
		if r.opts.Progress != nil {
			r.opts.Progress(event)
		}
	}

	logger.Info().
		Int("keywords", stats.Keywords).
		Int("pages", stats.Pages).
		Int("rows", stats.Rows).
		Int("no_results", stats.NoResults).
		Int("malformed_pages", stats.MalformedPages).
		Dur("elapsed", rc.Elapsed()).
		Msg("Batch complete")

	return stats, nil
}

func (r *Runner) search(ctx context.Context, keyword string, stats *Stats) (Event, error) {
	event := Event{Keyword: keyword}
	logger := reqctx.Logger(ctx)
	req := models.SearchRequest{
		Term:        keyword,
		OnePageOnly: r.opts.OnePageOnly,
		MaxPages:    r.opts.MaxPages,
	}

	for page, err := range r.crawler.Search(ctx, req) {
		if err != nil {
			switch {
			case errors.Is(err, engine.ErrNoSearchResults):
				logger.Info().Msg("Nothing found")
				event.NoResults = true
				stats.NoResults++
				return event, nil
			case errors.Is(err, engine.ErrInvalidRequest):
				logger.Warn().Err(err).Msg("Skipping keyword")
				return event, nil
			default:
				return event, err
			}
		}

		event.Pages++
		stats.Pages++

		messages, err := r.crawler.Messages(page, keyword)
		if err != nil {
			if errors.Is(err, engine.ErrMalformedPage) {
				logger.Error().Str("url", page.Link).Err(err).Msg("Page does not match site layout")
				stats.MalformedPages++
				continue
			}
			return event, err
		}

		for _, msg := range messages {
			if err := r.writer.Write(models.NewRow(keyword, page, msg)); err != nil {
				return event, fmt.Errorf("failed to write row: %w", err)
			}
			event.Rows++
			stats.Rows++
		}
	}

	return event, nil
}

// ParseKeywords splits newline-separated search terms, trimming blanks.
func ParseKeywords(text string) []string {
	keywords, _ := ReadKeywords(strings.NewReader(text))
	return keywords
}

// ReadKeywords reads one search term per line, skipping empty lines.
func ReadKeywords(r io.Reader) ([]string, error) {
	var keywords []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if kw := strings.TrimSpace(scanner.Text()); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keywords: %w", err)
	}
	return keywords, nil
}
