package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/xuri/excelize/v2"
)

var testRows = []models.Row{
	{Keyword: "phone", Timestamp: "2020/09/03 08:22", Username: "alice", Link: "https://bhf.io/threads/1/", Text: "call me"},
	{Keyword: "wallet", Timestamp: "2020/08/22 22:30", Username: "carol", Link: "https://lolz.guru/threads/2/", Text: "<b>bold</b> & co"},
	{Keyword: "phone", Timestamp: "2020/09/04 10:00", Username: "bob", Link: "https://bhf.io/threads/3/", Text: "phone, again"},
}

func writeAll(t *testing.T, w Writer) {
	t.Helper()
	for _, row := range testRows {
		if err := w.Write(row); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"out.csv":      FormatCSV,
		"out.JSON":     FormatJSON,
		"report.html":  FormatHTML,
		"notes.md":     FormatMarkdown,
		"book.xlsx":    FormatXLSX,
		"no-extension": FormatCSV,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestNew_UnsupportedFormat(t *testing.T) {
	if _, err := New("pdf", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	w, err := New("", path)
	if err != nil {
		t.Fatal(err)
	}
	writeAll(t, w)

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d", len(records))
	}
	if records[3][4] != "phone, again" {
		t.Errorf("Expected quoted text to round trip, got %q", records[3][4])
	}
}

func TestJSONWriter_GroupsByKeyword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	w, _ := New("", path)
	writeAll(t, w)

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []jsonSection
	if err := json.Unmarshal(content, &got); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(got) != 2 || got[0].Keyword != "phone" || len(got[0].Rows) != 2 || got[1].Keyword != "wallet" {
		t.Errorf("Unexpected sections %+v", got)
	}
}

func TestHTMLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.html")
	w, _ := New("", path)
	writeAll(t, w)

	content, _ := os.ReadFile(path)
	doc := string(content)

	if !strings.Contains(doc, `<a href="https://bhf.io/threads/1/">alice</a>`) {
		t.Error("Expected username linked to its page")
	}
	if !strings.Contains(doc, "&lt;b&gt;bold&lt;/b&gt; &amp; co") {
		t.Error("Expected message text to be escaped")
	}
	if strings.Count(doc, "<section>") != 2 {
		t.Errorf("Expected one section per keyword, got %d", strings.Count(doc, "<section>"))
	}
}

func TestMarkdownWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.md")
	w, _ := New("", path)
	writeAll(t, w)

	content, _ := os.ReadFile(path)
	doc := string(content)

	if !strings.Contains(doc, "## phone") || !strings.Contains(doc, "## wallet") {
		t.Errorf("Expected a heading per keyword, got:\n%s", doc)
	}
	if !strings.Contains(doc, "[alice](https://bhf.io/threads/1/)") {
		t.Errorf("Expected username link, got:\n%s", doc)
	}
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	w, err := New("", path)
	if err != nil {
		t.Fatal(err)
	}
	writeAll(t, w)

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "phone" || sheets[1] != "wallet" {
		t.Fatalf("Expected sheets [phone wallet], got %v", sheets)
	}

	rows, err := f.GetRows("phone")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "2020/09/03 08:22" || rows[1][1] != "alice" || rows[1][2] != "call me" {
		t.Errorf("Unexpected first row %v", rows[1])
	}

	ok, link, err := f.GetCellHyperLink("phone", "B3")
	if err != nil || !ok || link != "https://bhf.io/threads/3/" {
		t.Errorf("Expected username linked to thread 3, got %v %q %v", ok, link, err)
	}
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	tests := []struct{ keyword, want string }{
		{"+380", "+380"},
		{"a/b:c", "a_b_c"},
		{"'quoted'", "quoted"},
		{"+380", "+380 (2)"},
		{strings.Repeat("я", 40), strings.Repeat("я", 31)},
	}
	for _, tt := range tests {
		if got := sheetName(tt.keyword, used); got != tt.want {
			t.Errorf("sheetName(%q) = %q, want %q", tt.keyword, got, tt.want)
		}
	}
}
