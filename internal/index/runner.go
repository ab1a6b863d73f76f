package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/libranswer/libranswer/internal/chunk"
	"github.com/libranswer/libranswer/internal/embed"
	"github.com/libranswer/libranswer/internal/pdftext"
	"github.com/libranswer/libranswer/internal/store"
)

// DefaultEmbedBatchSize caps how many chunks are embedded per EmbedBatch
// call, matching the teacher runner's batching to keep a single HTTP
// request to the embedding backend bounded in size.
const DefaultEmbedBatchSize = 32

// DefaultEmbedParallelism bounds how many batches are in flight at once,
// mirroring the teacher's parallelSubSearch semaphore-over-errgroup shape.
const DefaultEmbedParallelism = 4

// RunnerConfig configures an indexing run.
type RunnerConfig struct {
	// EmbedBatchSize overrides DefaultEmbedBatchSize when positive.
	EmbedBatchSize int

	// EmbedParallelism overrides DefaultEmbedParallelism when positive.
	EmbedParallelism int
}

// Runner executes the C5 indexing pipeline against one profile's Library.
type Runner struct {
	library     *store.Library
	embedder    embed.Embedder
	chunker     *chunk.Chunker
	sink        ProgressSink
	batch       int
	parallelism int
}

// NewRunner creates a Runner. sink may be NoOpProgressSink{} if the caller
// doesn't need live progress.
func NewRunner(library *store.Library, embedder embed.Embedder, chunker *chunk.Chunker, cfg RunnerConfig, sink ProgressSink) *Runner {
	if chunker == nil {
		chunker = chunk.New(chunk.DefaultOptions())
	}
	if sink == nil {
		sink = NoOpProgressSink{}
	}
	batch := cfg.EmbedBatchSize
	if batch <= 0 {
		batch = DefaultEmbedBatchSize
	}
	parallelism := cfg.EmbedParallelism
	if parallelism <= 0 {
		parallelism = DefaultEmbedParallelism
	}
	return &Runner{library: library, embedder: embedder, chunker: chunker, sink: sink, batch: batch, parallelism: parallelism}
}

// Index runs the pipeline from spec §4.5 over items: resolve PDF path,
// extract pages, chunk with page tracking, embed, upsert. Re-indexing an
// already-indexed item replaces its chunks atomically (delete-then-upsert).
// Per-item failures (missing PDF, extraction error, embed error) are
// isolated and recorded on the Report; the run proceeds to the next item. A
// store-level failure — a dimension mismatch between the active embedder
// and the collection — aborts the run immediately, since it means every
// subsequent upsert would fail the same way.
func (r *Runner) Index(ctx context.Context, items []*store.Item) (*Report, error) {
	start := time.Now()
	report := &Report{Total: len(items)}

	for _, item := range items {
		select {
		case <-ctx.Done():
			report.Duration = time.Since(start)
			return report, ctx.Err()
		default:
		}

		r.sink.OnEvent(Event{Kind: EventStarted, ItemID: item.ID})

		if aborted, err := r.indexOne(ctx, item, report); err != nil {
			if aborted {
				report.Duration = time.Since(start)
				return report, err
			}
		}
	}

	if err := r.library.BuildSparseIndex(ctx, items); err != nil {
		report.Duration = time.Since(start)
		return report, fmt.Errorf("rebuild sparse index: %w", err)
	}

	report.Duration = time.Since(start)
	return report, nil
}

// indexOne processes a single item, recording its outcome on report. It
// returns aborted=true only for a store-level failure that should abort the
// whole run (spec §4.5); every other failure is recorded and the caller
// continues to the next item.
func (r *Runner) indexOne(ctx context.Context, item *store.Item, report *Report) (aborted bool, err error) {
	chunks, contentHash, pageCount, skipReason, prepErr := r.prepareItem(item)
	if prepErr != nil {
		r.recordError(report, item.ID, prepErr)
		return false, prepErr
	}
	if skipReason != "" {
		report.Skipped++
		report.SkipReasons = append(report.SkipReasons, SkipReason{ItemID: item.ID, Reason: skipReason})
		r.sink.OnEvent(Event{Kind: EventSkipped, ItemID: item.ID, Reason: skipReason})
		return false, nil
	}

	// Delete-then-upsert: atomic replacement of this item's chunks.
	if err := r.library.DeleteItem(ctx, item.ID); err != nil {
		r.recordError(report, item.ID, err)
		return false, err
	}

	storeChunks, vectors, err := r.embedChunks(ctx, chunks)
	if err != nil {
		r.recordError(report, item.ID, err)
		return false, err
	}

	if err := r.library.UpsertBatch(ctx, storeChunks, vectors); err != nil {
		var dimErr store.ErrDimensionMismatch
		if errors.As(err, &dimErr) {
			return true, fmt.Errorf("store-level failure, aborting run: %w", err)
		}
		r.recordError(report, item.ID, err)
		return false, err
	}

	indexed := *item
	indexed.ContentHash = contentHash
	indexed.PageCount = pageCount
	indexed.IndexedAt = time.Now()
	if err := r.library.SaveItem(ctx, &indexed); err != nil {
		r.recordError(report, item.ID, err)
		return false, err
	}

	report.Succeeded++
	report.Chunks += len(storeChunks)
	r.sink.OnEvent(Event{Kind: EventSucceeded, ItemID: item.ID, Chunks: len(storeChunks)})
	return false, nil
}

func (r *Runner) recordError(report *Report, itemID string, err error) {
	report.Errored++
	report.ItemErrors = append(report.ItemErrors, ItemError{ItemID: itemID, Message: err.Error()})
	r.sink.OnEvent(Event{Kind: EventErrored, ItemID: itemID, Err: err})
}

// prepareItem resolves the PDF, extracts pages, and chunks them. A
// non-empty skipReason covers every non-fatal reason to skip the item per
// spec §4.5 ("if missing, record a skip reason and continue" / "if empty,
// record skip reason"); a single bad PDF must not halt indexing the rest of
// the library, so extraction failures are mapped to skips rather than
// errors here.
func (r *Runner) prepareItem(item *store.Item) (chunks []*chunk.Chunk, contentHash string, pageCount int, skipReason string, err error) {
	if item.PDFPath == "" {
		return nil, "", 0, "no PDF path attached", nil
	}

	content, statErr := os.ReadFile(item.PDFPath)
	if statErr != nil {
		return nil, "", 0, fmt.Sprintf("pdf not found: %s", item.PDFPath), nil
	}
	contentHash = hashBytes(content)

	pages, extractErr := pdftext.Pages(item.PDFPath)
	if extractErr != nil {
		return nil, "", 0, fmt.Sprintf("extraction failed: %v", extractErr), nil
	}
	pageCount = len(pages)

	chunkPages := make([]chunk.PageText, len(pages))
	var hasText bool
	for i, p := range pages {
		chunkPages[i] = chunk.PageText{Page: p.Number, Text: p.Text}
		if p.Text != "" {
			hasText = true
		}
	}
	if !hasText {
		return nil, contentHash, pageCount, "no extractable text", nil
	}

	chunks = r.chunker.Chunk(item.ID, chunkPages)
	if len(chunks) == 0 {
		return nil, contentHash, pageCount, "no extractable text", nil
	}

	return chunks, contentHash, pageCount, "", nil
}

// embedChunks embeds the given chunks in batches, up to r.parallelism
// batches in flight at once, and converts them to store.Chunk alongside
// their vectors in matching order. Bounded parallelism mirrors the
// teacher's errgroup+semaphore shape (internal/search/multi_query.go's
// parallelSubSearch) applied to embedding instead of sub-query fan-out.
func (r *Runner) embedChunks(ctx context.Context, chunks []*chunk.Chunk) ([]*store.Chunk, [][]float32, error) {
	storeChunks := make([]*store.Chunk, len(chunks))
	vectors := make([][]float32, len(chunks))
	now := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, r.parallelism)

	for start := 0; start < len(chunks); start += r.batch {
		start := start
		end := start + r.batch
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			embeddings, err := r.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(embeddings) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
			}

			for i, c := range batch {
				storeChunks[start+i] = &store.Chunk{
					ID:        c.ID,
					ItemID:    c.ItemID,
					Index:     c.Index,
					Text:      c.Text,
					Page:      c.Page,
					CreatedAt: now,
				}
				vectors[start+i] = embeddings[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return storeChunks, vectors, nil
}

func hashBytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
