// Package pdftext extracts per-page text from local PDF files (C3).
package pdftext

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	liberrors "github.com/libranswer/libranswer/internal/errors"
)

// Page is a single extracted page, 1-indexed.
type Page struct {
	Number int
	Text   string
}

// lineTolerance groups text runs into the same visual line when their Y
// coordinates differ by less than this many PDF units.
const lineTolerance = 3.0

// Pages extracts per-page text from the PDF at path. It returns
// ExtractionError for missing or unreadable files. Image-only PDFs (or
// pages with no extractable text) yield Page entries with an empty Text,
// which is legal: downstream chunking tolerates empty pages.
func Pages(path string) ([]Page, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, liberrors.New(liberrors.ErrCodeExtractionNotFound,
			fmt.Sprintf("pdf not found: %s", path), err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, liberrors.New(liberrors.ErrCodeExtractionFailed,
			fmt.Sprintf("opening pdf: %s", path), err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i, Text: ""})
			continue
		}

		text, err := extractPageTextOrdered(page)
		if err != nil {
			// Content-related extraction issues never abort the run; the
			// page is recorded as empty and chunking tolerates it.
			pages = append(pages, Page{Number: i, Text: ""})
			continue
		}

		pages = append(pages, Page{Number: i, Text: strings.TrimSpace(text)})
	}

	return pages, nil
}

// extractPageTextOrdered reconstructs reading order from a PDF page's
// content stream by grouping text runs into visual lines (by Y proximity)
// and emitting lines top-to-bottom, preserving content-stream order within
// a line since some PDFs use negative text matrices that would garble text
// under an X-sort.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine

	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].y > lines[j].y
	})

	var parts []string
	for _, l := range lines {
		text := strings.TrimSpace(l.buf.String())
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n"), nil
}
