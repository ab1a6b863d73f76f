package store

import (
	"context"
	"fmt"
	"sort"
)

// Library composes a VectorStore, a BM25Index, and the profile's
// MetadataStore into the C4 contract from spec §4.4: per-embedding-model
// collections addressed by CollectionName, upsert/delete keyed on chunk and
// item id, dense/sparse/hybrid queries, and sparse-index rebuild after bulk
// indexing. The three underlying stores are never exposed to callers
// individually so a caller cannot accidentally write to one without the
// others (the historical defect class this generalizes away from the
// teacher's separately-wired coordinator/runner).
type Library struct {
	EmbeddingModelID string
	Dimensions       int

	vector   VectorStore
	sparse   BM25Index
	metadata MetadataStore
}

// NewLibrary binds a Library to the given stores for one embedding model.
// NewLibrary does not compare dimensions with vector's configured dimension;
// Upsert, UpsertBatch and QueryDense return ErrDimensionMismatch for any
// vector whose length differs from dimensions (spec §4.1, §4.4).
func NewLibrary(embeddingModelID string, dimensions int, vector VectorStore, sparse BM25Index, metadata MetadataStore) *Library {
	return &Library{
		EmbeddingModelID: embeddingModelID,
		Dimensions:       dimensions,
		vector:           vector,
		sparse:           sparse,
		metadata:         metadata,
	}
}

// Upsert inserts or replaces a chunk's text, dense vector, and metadata.
// Idempotent on chunk.ID. The caller must pass a precomputed vector — this
// method never embeds text itself (spec §4.4's critical contract), so it
// only validates the vector's dimension against the collection's.
func (l *Library) Upsert(ctx context.Context, chunk *Chunk, vector []float32) error {
	if len(vector) != l.Dimensions {
		return ErrDimensionMismatch{Expected: l.Dimensions, Got: len(vector)}
	}

	if err := l.metadata.SaveChunks(ctx, []*Chunk{chunk}); err != nil {
		return fmt.Errorf("upsert chunk metadata: %w", err)
	}
	if err := l.vector.Add(ctx, []string{chunk.ID}, [][]float32{vector}); err != nil {
		return fmt.Errorf("upsert dense vector: %w", err)
	}
	if err := l.sparse.Index(ctx, []*Document{{ID: chunk.ID, Content: chunk.Text}}); err != nil {
		return fmt.Errorf("upsert sparse entry: %w", err)
	}
	return nil
}

// UpsertBatch upserts many chunks at once, validating every vector's
// dimension up front so a batch either fully succeeds or fails before any
// partial write (the per-item atomicity the caller needs is at the item
// level, via DeleteItem then UpsertBatch for that item's chunks).
func (l *Library) UpsertBatch(ctx context.Context, chunks []*Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert batch: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != l.Dimensions {
			return ErrDimensionMismatch{Expected: l.Dimensions, Got: len(v)}
		}
		_ = i
	}
	if len(chunks) == 0 {
		return nil
	}

	if err := l.metadata.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("upsert chunk metadata: %w", err)
	}

	ids := make([]string, len(chunks))
	docs := make([]*Document, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		docs[i] = &Document{ID: c.ID, Content: c.Text}
	}
	if err := l.vector.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("upsert dense vectors: %w", err)
	}
	if err := l.sparse.Index(ctx, docs); err != nil {
		return fmt.Errorf("upsert sparse entries: %w", err)
	}
	return nil
}

// DeleteItem removes every chunk belonging to item id from all three
// stores. Used both for unindexing and as the "delete" half of re-index's
// delete-then-upsert atomicity.
func (l *Library) DeleteItem(ctx context.Context, itemID string) error {
	chunks, err := l.metadata.GetChunksByItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("list chunks for item: %w", err)
	}
	if len(chunks) == 0 {
		return l.metadata.DeleteItem(ctx, itemID)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}

	if err := l.vector.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete dense vectors: %w", err)
	}
	if err := l.sparse.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete sparse entries: %w", err)
	}
	if err := l.metadata.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete item metadata: %w", err)
	}
	return nil
}

// HybridResult is one deduplicated chunk id from QueryHybrid, carrying its
// dense score when the dense query found it (else its BM25 score) and which
// source(s) produced it.
type HybridResult struct {
	ChunkID    string
	Score      float32
	FromDense  bool
	FromSparse bool
}

// QueryDense runs a precomputed query vector against the dense collection.
// The store never embeds q_vec's source text itself (spec §4.4).
func (l *Library) QueryDense(ctx context.Context, qVec []float32, k int) ([]*VectorResult, error) {
	if len(qVec) != l.Dimensions {
		return nil, ErrDimensionMismatch{Expected: l.Dimensions, Got: len(qVec)}
	}
	return l.vector.Search(ctx, qVec, k)
}

// QuerySparse runs a BM25 query over the sparse index.
func (l *Library) QuerySparse(ctx context.Context, qText string, k int) ([]*BM25Result, error) {
	return l.sparse.Search(ctx, qText, k)
}

// QueryHybrid runs both QueryDense and QuerySparse and returns their union
// deduplicated on chunk id (dense scores are normalized similarity in
// [0,1]; BM25 scores are unbounded, so the two are not compared — a chunk
// found by both sources keeps its dense score, since dense results are
// collected first), since this method's job is recall, not a cross-source ranking: the
// downstream reranker (C2) re-scores the union and produces the
// authoritative order (spec §4.4)).
func (l *Library) QueryHybrid(ctx context.Context, qVec []float32, qText string, k int) ([]HybridResult, error) {
	denseResults, err := l.QueryDense(ctx, qVec, k)
	if err != nil {
		return nil, err
	}
	sparseResults, err := l.QuerySparse(ctx, qText, k)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*HybridResult, len(denseResults)+len(sparseResults))
	order := make([]string, 0, len(denseResults)+len(sparseResults))

	for _, r := range denseResults {
		byID[r.ID] = &HybridResult{ChunkID: r.ID, Score: r.Score, FromDense: true}
		order = append(order, r.ID)
	}
	for _, r := range sparseResults {
		if existing, ok := byID[r.DocID]; ok {
			existing.FromSparse = true
			continue
		}
		byID[r.DocID] = &HybridResult{ChunkID: r.DocID, Score: float32(r.Score), FromSparse: true}
		order = append(order, r.DocID)
	}

	results := make([]HybridResult, len(order))
	for i, id := range order {
		results[i] = *byID[id]
	}
	return results, nil
}

// BuildSparseIndex rebuilds the BM25 index from the dense collection's
// metadata so a warm start after bulk indexing reflects every upserted
// chunk, even ones added out of band. Per spec §4.4, the sparse index must
// always be reconstructable from the dense collection's chunk population.
func (l *Library) BuildSparseIndex(ctx context.Context, items []*Item) error {
	var allChunks []*Chunk
	for _, item := range items {
		chunks, err := l.metadata.GetChunksByItem(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("list chunks for %s: %w", item.ID, err)
		}
		allChunks = append(allChunks, chunks...)
	}

	sort.Slice(allChunks, func(i, j int) bool { return allChunks[i].ID < allChunks[j].ID })

	existing, err := l.sparse.AllIDs()
	if err != nil {
		return fmt.Errorf("list existing sparse ids: %w", err)
	}
	if len(existing) > 0 {
		if err := l.sparse.Delete(ctx, existing); err != nil {
			return fmt.Errorf("clear sparse index: %w", err)
		}
	}

	if len(allChunks) == 0 {
		return nil
	}

	docs := make([]*Document, len(allChunks))
	for i, c := range allChunks {
		docs[i] = &Document{ID: c.ID, Content: c.Text}
	}
	return l.sparse.Index(ctx, docs)
}

// SaveItem persists item metadata after a successful index or re-index.
// Exposed so internal/index can record content hash, page count, and
// indexed-at time without reaching past the Library into the metadata
// store directly.
func (l *Library) SaveItem(ctx context.Context, item *Item) error {
	return l.metadata.SaveItem(ctx, item)
}

// GetChunksByItem exposes the metadata store's per-item chunk listing, used
// by the consistency checker and by callers inspecting an item's indexed
// chunks without going through a query.
func (l *Library) GetChunksByItem(ctx context.Context, itemID string) ([]*Chunk, error) {
	return l.metadata.GetChunksByItem(ctx, itemID)
}

// GetChunks exposes the metadata store's batch chunk lookup by id, used by
// the orchestrator to resolve hybrid-query chunk ids into text and page
// numbers before reranking.
func (l *Library) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	return l.metadata.GetChunks(ctx, ids)
}

// GetItem exposes the metadata store's item lookup, used by the
// orchestrator to attach title/authors/year to a chunk's evidence record.
func (l *Library) GetItem(ctx context.Context, id string) (*Item, error) {
	return l.metadata.GetItem(ctx, id)
}

// AllSparseIDs exposes the sparse index's full id listing for consistency
// checks (internal/index's ConsistencyChecker).
func (l *Library) AllSparseIDs() ([]string, error) {
	return l.sparse.AllIDs()
}

// AllDenseIDs exposes the dense store's full id listing for consistency
// checks.
func (l *Library) AllDenseIDs() []string {
	return l.vector.AllIDs()
}

// DeleteOrphanSparseIDs removes the given chunk ids from the sparse index
// only, without touching metadata or the dense store. Used by the
// consistency checker to repair BM25 entries that outlived their metadata.
func (l *Library) DeleteOrphanSparseIDs(ctx context.Context, ids []string) error {
	return l.sparse.Delete(ctx, ids)
}

// DeleteOrphanDenseIDs removes the given chunk ids from the dense store
// only. Used by the consistency checker to repair vector entries that
// outlived their metadata.
func (l *Library) DeleteOrphanDenseIDs(ctx context.Context, ids []string) error {
	return l.vector.Delete(ctx, ids)
}

// Close releases the underlying vector and sparse store handles. The
// metadata store is owned by the profile, not the Library, so it is not
// closed here.
func (l *Library) Close() error {
	var errs []error
	if err := l.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := l.sparse.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing library: %v", errs)
	}
	return nil
}
