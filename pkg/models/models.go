package models

import (
	"fmt"
	"strings"
	"time"
)

// ExportTimeLayout is the timestamp format used for exported rows.
const ExportTimeLayout = "2006/01/02 15:04"

// Page is a fetched document. It is never modified after the fetch.
type Page struct {
	Link string `json:"link"`
	HTML []byte `json:"-"`
}

// Empty reports whether the page carries no content, which callers treat as
// "page unavailable" rather than as a page without messages.
func (p Page) Empty() bool {
	return len(p.HTML) == 0
}

// Message is a single post extracted from a page.
type Message struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username"`
}

// SearchRequest describes one keyword search.
type SearchRequest struct {
	Term        string
	OnePageOnly bool
	MaxPages    int
}

// Validate checks the request invariants.
func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Term) == "" {
		return fmt.Errorf("search term is empty")
	}
	if !r.OnePageOnly && r.MaxPages < 1 {
		return fmt.Errorf("max pages must be >= 1 when paginating, got %d", r.MaxPages)
	}
	return nil
}

// PageLimit returns the number of listing pages the request may visit.
func (r SearchRequest) PageLimit() int {
	if r.OnePageOnly {
		return 1
	}
	return r.MaxPages
}

// Row is one exported line: a message found for a keyword on a page.
type Row struct {
	Keyword   string `json:"keyword"`
	Timestamp string `json:"timestamp"`
	Username  string `json:"username"`
	Link      string `json:"link"`
	Text      string `json:"text"`
}

// NewRow formats a message found on page for export.
func NewRow(keyword string, page Page, msg Message) Row {
	return Row{
		Keyword:   keyword,
		Timestamp: msg.Timestamp.Format(ExportTimeLayout),
		Username:  msg.Username,
		Link:      page.Link,
		Text:      msg.Text,
	}
}
