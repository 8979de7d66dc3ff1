package engine

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/forumgrep/pkg/models"
)

// Pagination decides whether a search walks on to a further result page.
type Pagination struct {
	OnePageOnly bool
	MaxPages    int
}

// NewPagination returns the policy for req.
func NewPagination(req models.SearchRequest) Pagination {
	return Pagination{OnePageOnly: req.OnePageOnly, MaxPages: req.MaxPages}
}

// Next returns the href of the page after doc, given how many pages have been
// visited so far, or false when the walk stops. The href is returned as found
// and still has to be resolved against the site root.
func (p Pagination) Next(doc *goquery.Document, visited int) (string, bool) {
	if p.OnePageOnly {
		return "", false
	}
	href, ok := NextLink(doc)
	if !ok {
		return "", false
	}
	if visited >= p.limit() {
		return "", false
	}
	return href, true
}

// Continue reports whether an offset-driven walk may fetch another page.
// Offset walks have no next marker; the caller checks for empty pages and
// the offset ceiling itself.
func (p Pagination) Continue(visited int) bool {
	if p.OnePageOnly {
		return false
	}
	return visited < p.limit()
}

func (p Pagination) limit() int {
	if p.OnePageOnly || p.MaxPages < 1 {
		return 1
	}
	return p.MaxPages
}

// NextLink finds a next page marker: a <link rel="next"> element, or an
// anchor whose class mentions "next" and which is not inactive or disabled.
func NextLink(doc *goquery.Document) (string, bool) {
	if href, ok := doc.Find(`link[rel="next"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href), true
	}

	var (
		href  string
		found bool
	)
	doc.Find(`a[class*="next"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(class, "inactive") || strings.Contains(class, "disabled") {
			return true
		}
		h, ok := s.Attr("href")
		if !ok || strings.TrimSpace(h) == "" {
			return true
		}
		href, found = strings.TrimSpace(h), true
		return false
	})
	return href, found
}
