package output

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/xuri/excelize/v2"
)

// maxSheetName is Excel's limit on worksheet name length.
const maxSheetName = 31

var xlsxHeader = []any{"Date", "Username", "Text"}

// XLSXWriter builds a workbook with one sheet per keyword. The username
// cell links to the page the message was found on.
type XLSXWriter struct {
	path     string
	sections sections
}

// NewXLSX creates a writer for path
func NewXLSX(path string) *XLSXWriter {
	return &XLSXWriter{path: path}
}

// Write records one row
func (w *XLSXWriter) Write(row models.Row) error {
	w.sections.add(row)
	return nil
}

// Close builds and writes the workbook
func (w *XLSXWriter) Close() error {
	f := excelize.NewFile()
	defer f.Close()

	linkStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "1265BE", Underline: "single"},
	})
	if err != nil {
		return err
	}

	used := make(map[string]bool)
	first := f.GetSheetName(0)
	for i, keyword := range w.sections.order {
		sheet := sheetName(keyword, used)
		if i == 0 {
			err = f.SetSheetName(first, sheet)
		} else {
			_, err = f.NewSheet(sheet)
		}
		if err != nil {
			return fmt.Errorf("sheet for %q: %w", keyword, err)
		}
		if err := writeSheet(f, sheet, w.sections.rows[keyword], linkStyle); err != nil {
			return fmt.Errorf("sheet for %q: %w", keyword, err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	return writeFile(w.path, buf.Bytes())
}

func writeSheet(f *excelize.File, sheet string, rows []models.Row, linkStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &xlsxHeader); err != nil {
		return err
	}
	for i, row := range rows {
		n := i + 2
		values := []any{row.Timestamp, row.Username, row.Text}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", n), &values); err != nil {
			return err
		}
		if row.Link == "" {
			continue
		}
		cell := fmt.Sprintf("B%d", n)
		if err := f.SetCellHyperLink(sheet, cell, row.Link, "External"); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, linkStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", 18); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "C", "C", 100)
}

// sheetName turns a keyword into a valid, unique worksheet name.
func sheetName(keyword string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, keyword)
	name = strings.Trim(name, "'")
	if name == "" {
		name = "keyword"
	}
	name = truncateRunes(name, maxSheetName)

	base := name
	for i := 2; used[strings.ToLower(name)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
