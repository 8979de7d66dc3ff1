package output

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/law-makers/forumgrep/pkg/models"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLWriter writes an HTML document with one table per keyword on Close.
type HTMLWriter struct {
	path     string
	sections sections
}

// NewHTML creates a writer for path
func NewHTML(path string) *HTMLWriter {
	return &HTMLWriter{path: path}
}

// Write records one row
func (w *HTMLWriter) Write(row models.Row) error {
	w.sections.add(row)
	return nil
}

// Close renders and writes the document
func (w *HTMLWriter) Close() error {
	var buf bytes.Buffer
	if err := renderDocument(&buf, &w.sections); err != nil {
		return err
	}
	return writeFile(w.path, buf.Bytes())
}

// renderDocument renders one <section> per keyword. Usernames link to the
// page the message was found on.
func renderDocument(w io.Writer, s *sections) error {
	body := element(atom.Body)
	for _, kw := range s.order {
		section := element(atom.Section)
		h2 := element(atom.H2)
		h2.AppendChild(textNode(kw))
		section.AppendChild(h2)

		table := element(atom.Table)
		thead := element(atom.Thead)
		head := element(atom.Tr)
		for _, col := range []string{"Date", "Username", "Text"} {
			th := element(atom.Th)
			th.AppendChild(textNode(col))
			head.AppendChild(th)
		}
		thead.AppendChild(head)
		table.AppendChild(thead)

		tbody := element(atom.Tbody)
		for _, row := range s.rows[kw] {
			tr := element(atom.Tr)

			date := element(atom.Td)
			date.AppendChild(textNode(row.Timestamp))
			tr.AppendChild(date)

			user := element(atom.Td)
			link := element(atom.A, html.Attribute{Key: "href", Val: row.Link})
			link.AppendChild(textNode(row.Username))
			user.AppendChild(link)
			tr.AppendChild(user)

			text := element(atom.Td)
			text.AppendChild(textNode(row.Text))
			tr.AppendChild(text)

			tbody.AppendChild(tr)
		}
		table.AppendChild(tbody)
		section.AppendChild(table)
		body.AppendChild(section)
	}

	head := element(atom.Head)
	meta := element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"})
	head.AppendChild(meta)

	root := element(atom.Html)
	root.AppendChild(head)
	root.AppendChild(body)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(root)

	return html.Render(w, doc)
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// CleanHTML removes unwanted elements and attributes to produce a safe HTML excerpt
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	// Remove unwanted tags
	doc.Find("script, style, link, meta, noscript, iframe, svg, form, input, button, select, textarea, canvas").Remove()

	// Clean attributes, anchors keep href and title
	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		if len(s.Nodes) == 0 {
			return
		}
		node := s.Nodes[0]
		var kept []html.Attribute
		for _, attr := range node.Attr {
			if node.Data == "a" && (attr.Key == "href" || attr.Key == "title") {
				kept = append(kept, attr)
			}
		}
		node.Attr = kept
	})

	htmlStr, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(htmlStr), nil
}
