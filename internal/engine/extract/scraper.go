// Package extract turns fetched forum pages into message records. It performs
// no I/O.
package extract

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/pkg/models"
	"golang.org/x/text/cases"
)

// Scraper extracts messages from pages laid out per its rules.
type Scraper struct {
	rules Rules
}

// New creates a Scraper for the given layout
func New(rules Rules) *Scraper {
	return &Scraper{rules: rules}
}

// Rules returns the layout the scraper was built with.
func (s *Scraper) Rules() Rules {
	return s.rules
}

// Messages returns the messages on page whose text contains term, compared
// case-insensitively. Author and date are parsed only for matching messages.
// A matching message that does not fit the layout fails the whole page with
// a *engine.MalformedPageError.
func (s *Scraper) Messages(page models.Page, term string) ([]models.Message, error) {
	if page.Empty() {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, &engine.MalformedPageError{URL: page.Link, Field: "document", Err: err}
	}

	// Caser keeps state, one per call
	fold := cases.Fold()
	needle := fold.String(term)

	var messages []models.Message
	var failure error
	doc.Find(s.rules.MessageSelector).EachWithBreak(func(i int, node *goquery.Selection) bool {
		text, err := s.text(page, node)
		if err != nil {
			failure = err
			return false
		}
		if !strings.Contains(fold.String(text), needle) {
			return true
		}

		username, err := s.author(page, node)
		if err != nil {
			failure = err
			return false
		}
		ts, err := s.date(page, node)
		if err != nil {
			failure = err
			return false
		}

		messages = append(messages, models.Message{
			Text:      text,
			Timestamp: ts,
			Username:  username,
		})
		return true
	})
	if failure != nil {
		return nil, failure
	}

	return messages, nil
}

func (s *Scraper) text(page models.Page, node *goquery.Selection) (string, error) {
	block := node.Find(s.rules.TextSelector).First()
	if block.Length() == 0 {
		return "", &engine.MalformedPageError{URL: page.Link, Field: s.rules.TextSelector}
	}
	if s.rules.QuoteSelector != "" {
		block.Find(s.rules.QuoteSelector).Remove()
	}

	text := VisibleText(block)
	for _, r := range s.rules.StripChars {
		text = strings.ReplaceAll(text, string(r), "")
	}
	return text, nil
}

func (s *Scraper) author(page models.Page, node *goquery.Selection) (string, error) {
	rule := s.rules.Author
	value, ok := lookup(node, rule.Selector, rule.Attr)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", &engine.MalformedPageError{URL: page.Link, Field: "author"}
	}
	return value, nil
}

func (s *Scraper) date(page models.Page, node *goquery.Selection) (time.Time, error) {
	rule := s.rules.Date
	value, ok := lookup(node, rule.Selector, rule.Attr)
	if !ok {
		return time.Time{}, &engine.MalformedPageError{URL: page.Link, Field: "date"}
	}

	ts, err := ParseDate(rule, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &engine.MalformedPageError{URL: page.Link, Field: "date", Err: err}
	}
	return ts, nil
}

// ParseDate parses value with the first matching layout of rule.
func ParseDate(rule DateRule, value string) (time.Time, error) {
	loc := rule.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range rule.Layouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q does not match %q", value, rule.Layouts)
}

// lookup reads attr (or the text when attr is empty) from the first element
// matching selector under node, or from node itself when selector is empty.
func lookup(node *goquery.Selection, selector, attr string) (string, bool) {
	target := node
	if selector != "" {
		target = node.Find(selector).First()
	}
	if target.Length() == 0 {
		return "", false
	}
	if attr == "" {
		return target.Text(), true
	}
	return target.Attr(attr)
}
