// Package pdfview extracts per-page text from a staged PDF for the preview
// pane. Extraction is best effort: scanned or image-only pages simply come
// back empty and the preview shows a placeholder.
package pdfview

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

var extraneousWhitespace = regexp.MustCompile(`[ \t]+`)

// Page is one extracted PDF page.
type Page struct {
	Number int
	Text   string
}

// Document is the extracted preview content of a staged PDF.
type Document struct {
	Path  string
	Pages []Page
}

// PageCount returns the number of pages in the source document.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// Load opens the staged PDF and extracts text page by page.
func Load(path string) (*Document, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer file.Close()

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			if extracted, err := page.GetPlainText(nil); err == nil {
				text = normalizeSpace(extracted)
			}
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return &Document{Path: path, Pages: pages}, nil
}

func normalizeSpace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(extraneousWhitespace.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
