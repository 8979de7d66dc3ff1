package output

import (
	"encoding/json"

	"github.com/law-makers/forumgrep/pkg/models"
)

// JSONWriter collects rows and writes them grouped by keyword on Close.
type JSONWriter struct {
	path     string
	sections sections
}

type jsonSection struct {
	Keyword string       `json:"keyword"`
	Rows    []models.Row `json:"rows"`
}

// NewJSON creates a writer for path
func NewJSON(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

// Write records one row
func (w *JSONWriter) Write(row models.Row) error {
	w.sections.add(row)
	return nil
}

// Close writes the document
func (w *JSONWriter) Close() error {
	out := make([]jsonSection, 0, len(w.sections.order))
	for _, kw := range w.sections.order {
		out = append(out, jsonSection{Keyword: kw, Rows: w.sections.rows[kw]})
	}

	content, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(w.path, content)
}
