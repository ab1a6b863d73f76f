package chunk

import (
	"fmt"
	"strings"
	"unicode"
)

// Chunker splits a sequence of page texts into overlapping character-window
// chunks, tracking which page contributed the majority of each chunk's
// characters.
type Chunker struct {
	opts Options
}

// New creates a chunker with the given options. Zero-value fields fall back
// to DefaultOptions.
func New(opts Options) *Chunker {
	if opts.TargetChars <= 0 {
		opts.TargetChars = DefaultChunkChars
	}
	if opts.OverlapChars <= 0 {
		opts.OverlapChars = DefaultChunkOverlap
	}
	if opts.OverlapChars >= opts.TargetChars {
		opts.OverlapChars = opts.TargetChars / 4
	}
	return &Chunker{opts: opts}
}

// offsetSpan records the page a given byte range of the concatenated
// document text came from.
type offsetSpan struct {
	start, end int // byte offsets into the concatenated text, end exclusive
	page       int
}

// Chunk concatenates the given pages (in order) and splits the result into
// overlapping chunks, each tagged with the page that contributed the most
// characters to it. Empty pages are tolerated and contribute no spans.
func (c *Chunker) Chunk(itemID string, pages []PageText) []*Chunk {
	var sb strings.Builder
	spans := make([]offsetSpan, 0, len(pages))

	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		start := sb.Len()
		sb.WriteString(p.Text)
		if !strings.HasSuffix(p.Text, "\n") {
			sb.WriteString("\n")
		}
		spans = append(spans, offsetSpan{start: start, end: sb.Len(), page: p.Page})
	}

	full := sb.String()
	if strings.TrimSpace(full) == "" {
		return nil
	}

	bounds := c.splitBounds(full)

	chunks := make([]*Chunk, 0, len(bounds))
	for i, b := range bounds {
		text := strings.TrimSpace(full[b.start:b.end])
		if text == "" {
			continue
		}
		chunks = append(chunks, &Chunk{
			ID:     fmt.Sprintf("%s#%04d", itemID, i),
			Index:  i,
			ItemID: itemID,
			Text:   text,
			Page:   majorityPage(spans, b.start, b.end),
		})
	}
	return chunks
}

type byteBound struct{ start, end int }

// splitBounds computes the [start,end) byte ranges of each chunk, stepping
// by (target - overlap) and snapping the right edge to the nearest
// whitespace within WordBoundaryLookback bytes so chunks rarely split a
// word. The final short remainder is merged into the previous chunk when it
// falls below MinChunkChars, so trailing text larger than the threshold
// still becomes its own legitimate chunk.
func (c *Chunker) splitBounds(text string) []byteBound {
	n := len(text)
	if n <= c.opts.TargetChars {
		return []byteBound{{0, n}}
	}

	step := c.opts.TargetChars - c.opts.OverlapChars
	if step <= 0 {
		step = c.opts.TargetChars
	}

	var bounds []byteBound
	start := 0
	for start < n {
		end := start + c.opts.TargetChars
		if end >= n {
			end = n
		} else {
			end = snapToWhitespace(text, end)
		}

		if end <= start {
			end = min(start+1, n)
		}

		bounds = append(bounds, byteBound{start, end})

		if end >= n {
			break
		}
		next := end - c.opts.OverlapChars
		if next <= start {
			next = start + step
		}
		start = next
	}

	// Merge a too-small trailing chunk into its predecessor.
	if len(bounds) >= 2 {
		last := bounds[len(bounds)-1]
		if last.end-last.start < MinChunkChars {
			bounds[len(bounds)-2].end = last.end
			bounds = bounds[:len(bounds)-1]
		}
	}

	return bounds
}

// snapToWhitespace looks backward from pos (up to WordBoundaryLookback
// bytes) for a whitespace rune and returns the position just after it,
// avoiding a cut in the middle of a word. Falls back to pos if none found.
func snapToWhitespace(text string, pos int) int {
	limit := pos - WordBoundaryLookback
	if limit < 0 {
		limit = 0
	}
	for i := pos; i > limit; i-- {
		if i >= len(text) {
			continue
		}
		r := rune(text[i])
		if unicode.IsSpace(r) {
			return i + 1
		}
	}
	return pos
}

// majorityPage returns the page whose span overlaps [start,end) with the
// most characters. Ties favor the lower page number.
func majorityPage(spans []offsetSpan, start, end int) int {
	counts := make(map[int]int)
	order := make([]int, 0, len(spans))
	for _, sp := range spans {
		ov := overlap(sp.start, sp.end, start, end)
		if ov <= 0 {
			continue
		}
		if _, seen := counts[sp.page]; !seen {
			order = append(order, sp.page)
		}
		counts[sp.page] += ov
	}
	if len(order) == 0 {
		return 0
	}
	best := order[0]
	for _, page := range order[1:] {
		if counts[page] > counts[best] || (counts[page] == counts[best] && page < best) {
			best = page
		}
	}
	return best
}

func overlap(aStart, aEnd, bStart, bEnd int) int {
	s := max(aStart, bStart)
	e := min(aEnd, bEnd)
	if e <= s {
		return 0
	}
	return e - s
}
