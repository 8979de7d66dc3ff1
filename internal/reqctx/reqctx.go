// Package reqctx tags one search run, and the keyword being searched, onto a
// context so logs and errors from every layer can be correlated.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key int

const runKey key = 0

// RequestContext identifies one search run.
type RequestContext struct {
	RequestID string
	Site      string
	Keyword   string
	StartTime time.Time
}

// WithRequestContext starts a new run against site.
func WithRequestContext(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, runKey, &RequestContext{
		RequestID: uuid.NewString(),
		Site:      site,
		StartTime: time.Now(),
	})
}

// WithKeyword narrows the run in ctx to one keyword. The request id and start
// time are shared with the parent.
func WithKeyword(ctx context.Context, keyword string) context.Context {
	rc := *GetRequestContext(ctx)
	rc.Keyword = keyword
	return context.WithValue(ctx, runKey, &rc)
}

// GetRequestContext returns the run in ctx, or a placeholder with id
// "unknown" when there is none.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(runKey).(*RequestContext); ok {
		return rc
	}
	return &RequestContext{
		RequestID: "unknown",
		StartTime: time.Now(),
	}
}

// Elapsed returns the time since the run started
func (rc *RequestContext) Elapsed() time.Duration {
	return time.Since(rc.StartTime)
}

// Logger returns the global logger with the run's fields attached.
func Logger(ctx context.Context) zerolog.Logger {
	rc := GetRequestContext(ctx)
	lc := log.With().Str("request_id", rc.RequestID)
	if rc.Site != "" {
		lc = lc.Str("site", rc.Site)
	}
	if rc.Keyword != "" {
		lc = lc.Str("keyword", rc.Keyword)
	}
	return lc.Logger()
}

// RequestError wraps an error with the run and keyword it happened in
type RequestError struct {
	RequestID string
	Keyword   string
	Err       error
}

func (e *RequestError) Error() string {
	if e.Keyword != "" {
		return fmt.Sprintf("[%s] keyword %q: %v", e.RequestID, e.Keyword, e.Err)
	}
	return fmt.Sprintf("[%s] %v", e.RequestID, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError tags err with the run in ctx. It returns nil for a nil err.
func NewRequestError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	rc := GetRequestContext(ctx)
	return &RequestError{
		RequestID: rc.RequestID,
		Keyword:   rc.Keyword,
		Err:       err,
	}
}
