// Package bibsource implements the read-only bibliographic enumerator
// spec.md §1 calls an "external collaborator": given a reference-manager
// export, it yields one BibliographicItem per entry, with a relative PDF
// path resolved against the export's directory, for internal/index to
// consume. Entries are not filtered on whether their PDF exists.
//
// Grounded on teacher internal/scanner/scanner.go's walk-and-stream shape
// (a channel of results filled by a goroutine, closed when the source
// is exhausted), stripped of everything specific to walking a git working
// tree (gitignore matching, submodule discovery, language detection) since
// a bibliographic export is a flat, already-enumerated record set rather
// than a directory tree to be filtered.
package bibsource

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	liberrors "github.com/libranswer/libranswer/internal/errors"
)

// BibliographicItem is one entry from the reference manager export.
type BibliographicItem struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    int      `json:"year"`
	PDFPath string   `json:"pdf_path"`
}

// ScanResult mirrors the teacher's ScanResult shape: a streamed item or a
// per-entry error, never both.
type ScanResult struct {
	Item  *BibliographicItem
	Error error
}

// Source enumerates bibliographic items from an external reference
// manager's export. The concrete format (JSON, CSV) is left to
// implementations; JSONSource below is the default since most reference
// managers (Zotero, BibDesk) export item-per-record JSON.
type Source interface {
	// Scan streams every item in the export on the returned channel,
	// closing it when exhausted or ctx is cancelled.
	Scan(ctx context.Context) (<-chan ScanResult, error)
}

// JSONSource reads a single JSON file containing an array of
// BibliographicItem records.
type JSONSource struct {
	path string
}

// NewJSONSource creates a JSONSource reading path.
func NewJSONSource(path string) *JSONSource {
	return &JSONSource{path: path}
}

func (s *JSONSource) Scan(ctx context.Context) (<-chan ScanResult, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, liberrors.ExtractionError("read bibliographic source file", err)
	}

	var items []BibliographicItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, liberrors.ExtractionError("parse bibliographic source file", err)
	}

	out := make(chan ScanResult, len(items))
	go func() {
		defer close(out)
		base := filepath.Dir(s.path)
		for i := range items {
			if ctx.Err() != nil {
				return
			}
			item := items[i]
			if item.PDFPath != "" && !filepath.IsAbs(item.PDFPath) {
				item.PDFPath = filepath.Join(base, item.PDFPath)
			}
			select {
			case <-ctx.Done():
				return
			case out <- ScanResult{Item: &item}:
			}
		}
	}()
	return out, nil
}

// Collect drains a Source's channel into a slice, surfacing the first
// per-entry error as the overall error (bibliographic export parsing is
// all-or-nothing; a partially malformed export is a configuration problem,
// unlike a per-PDF extraction failure during indexing).
func Collect(ctx context.Context, src Source) ([]*BibliographicItem, error) {
	ch, err := src.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var items []*BibliographicItem
	for res := range ch {
		if res.Error != nil {
			return nil, res.Error
		}
		items = append(items, res.Item)
	}
	return items, nil
}
