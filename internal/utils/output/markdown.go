package output

import (
	"bytes"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/law-makers/forumgrep/pkg/models"
)

// MarkdownWriter renders the HTML export and converts it to GitHub flavored
// Markdown, one heading and table per keyword.
type MarkdownWriter struct {
	path     string
	sections sections
}

// NewMarkdown creates a writer for path
func NewMarkdown(path string) *MarkdownWriter {
	return &MarkdownWriter{path: path}
}

// Write records one row
func (w *MarkdownWriter) Write(row models.Row) error {
	w.sections.add(row)
	return nil
}

// Close converts and writes the document
func (w *MarkdownWriter) Close() error {
	var buf bytes.Buffer
	if err := renderDocument(&buf, &w.sections); err != nil {
		return err
	}

	cleaned, err := CleanHTML(buf.String())
	if err != nil {
		return err
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	mdStr, err := converter.ConvertString(cleaned)
	if err != nil {
		return err
	}
	return writeFile(w.path, []byte(mdStr+"\n"))
}
