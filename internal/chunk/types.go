// Package chunk splits extracted PDF page text into retrievable passages.
//
// A Chunk targets DefaultChunkChars characters with DefaultChunkOverlap
// characters of overlap between consecutive chunks, and tracks which page
// contributed the majority of its characters so the chunk can be attributed
// to a single page for citation purposes.
package chunk

import "time"

// Chunk size defaults per the indexing contract: 800 characters target,
// 200 characters overlap, tolerant of word boundaries.
const (
	DefaultChunkChars    = 800
	DefaultChunkOverlap  = 200
	MinChunkChars        = 200 // below this, a trailing chunk is merged into its predecessor
	WordBoundaryLookback = 80  // how far back we'll look for whitespace before cutting mid-word
)

// PageText is a single extracted page, 1-indexed.
type PageText struct {
	Page int
	Text string
}

// Chunk is a retrievable unit of content extracted from a bibliographic item's PDF.
type Chunk struct {
	ID    string // "<itemID>#<index, zero-padded>"
	Index int    // 0-based position within the item

	ItemID string
	Text   string
	Page   int // page that contributed the majority of this chunk's characters

	// Denormalized bibliographic metadata for display without a join.
	Title   string
	Authors []string
	Year    int
	PDFPath string

	CreatedAt time.Time
}

// Options configures the chunker.
type Options struct {
	TargetChars  int
	OverlapChars int
}

// DefaultOptions returns the spec-mandated chunk size and overlap.
func DefaultOptions() Options {
	return Options{
		TargetChars:  DefaultChunkChars,
		OverlapChars: DefaultChunkOverlap,
	}
}
