// Package output writes exported rows: one section per keyword, each row a
// message with its timestamp, author (linked to the page it was found on)
// and text.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/law-makers/forumgrep/pkg/models"
)

// Supported formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatMarkdown = "md"
	FormatXLSX     = "xlsx"
)

// Writer receives rows as they are produced. Close flushes and finishes the
// document; rows are not guaranteed on disk before it.
type Writer interface {
	Write(row models.Row) error
	Close() error
}

// New creates a writer for path, or for stdout when path is empty. An empty
// format is inferred from the file extension, defaulting to CSV.
func New(format, path string) (Writer, error) {
	if format == "" {
		format = FormatFromPath(path)
	}

	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSV(path)
	case FormatJSON:
		return NewJSON(path), nil
	case FormatHTML, "htm":
		return NewHTML(path), nil
	case FormatMarkdown, "markdown":
		return NewMarkdown(path), nil
	case FormatXLSX:
		return NewXLSX(path), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// FormatFromPath maps a file extension to a format.
func FormatFromPath(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json":
		return FormatJSON
	case "html", "htm":
		return FormatHTML
	case "md", "markdown":
		return FormatMarkdown
	case "xlsx":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// sections groups rows by keyword in first-seen order.
type sections struct {
	order []string
	rows  map[string][]models.Row
}

func (s *sections) add(row models.Row) {
	if s.rows == nil {
		s.rows = make(map[string][]models.Row)
	}
	if _, ok := s.rows[row.Keyword]; !ok {
		s.order = append(s.order, row.Keyword)
	}
	s.rows[row.Keyword] = append(s.rows[row.Keyword], row)
}

// writeFile writes a whole document to path, or to stdout when path is empty.
func writeFile(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
