package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/law-makers/forumgrep/pkg/models"
)

var csvHeader = []string{"keyword", "timestamp", "username", "link", "text"}

// CSVWriter streams rows to a CSV file as they arrive.
type CSVWriter struct {
	file   io.WriteCloser
	writer *csv.Writer
}

// NewCSV creates path and writes the header row. An empty path writes to
// stdout.
func NewCSV(path string) (*CSVWriter, error) {
	var file io.WriteCloser = nopCloser{os.Stdout}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		file = f
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		file.Close()
		return nil, err
	}
	return &CSVWriter{file: file, writer: writer}, nil
}

// Write appends one row
func (w *CSVWriter) Write(row models.Row) error {
	return w.writer.Write([]string{row.Keyword, row.Timestamp, row.Username, row.Link, row.Text})
}

// Close flushes and closes the file
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return w.file.Close()
}
