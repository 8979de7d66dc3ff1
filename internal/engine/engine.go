package engine

import (
	"context"
	"iter"

	"github.com/law-makers/forumgrep/pkg/models"
)

// Crawler is the interface every search strategy implements
type Crawler interface {
	// Name returns the site the crawler targets
	Name() string

	// Search runs one keyword search and yields the fetched pages lazily.
	// The sequence is finite and not restartable: ranging over it again
	// re-executes the whole search. A yielded error ends the sequence.
	Search(ctx context.Context, req models.SearchRequest) iter.Seq2[models.Page, error]

	// Messages extracts the messages of page that contain term
	Messages(page models.Page, term string) ([]models.Message, error)
}

// Stage is a step of a single Search call, used in debug logs.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageAuthenticating Stage = "authenticating"
	StageSeeding        Stage = "seeding"
	StagePaginating     Stage = "paginating"
	StageFetching       Stage = "fetching"
	StageDone           Stage = "done"
)
