// Package store provides vector storage (coder/hnsw), BM25 keyword indexing
// (bleve/SQLite FTS5), and chunk metadata persistence (SQLite). This is the
// persistence layer for a single profile's library: a profile's item and
// chunk metadata live in one SQLite database, while the dense and sparse
// indices are partitioned per embedding model (C4), since switching the
// embedding model invalidates the existing vectors but not the metadata.
package store

import (
	"context"
	"fmt"
	"time"
)

// State keys for the per-profile metadata store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the active index.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model id used for the active index.
	StateKeyIndexModel = "index_embedding_model"
)

// Checkpoint state keys for resumable indexing.
const (
	// StateKeyCheckpointStage stores the current indexing stage: "scanning"|"extracting"|"embedding"|"indexing"|"complete"
	StateKeyCheckpointStage = "checkpoint_stage"
	// StateKeyCheckpointTotal stores the total number of chunks to process.
	StateKeyCheckpointTotal = "checkpoint_total"
	// StateKeyCheckpointEmbedded stores the count of chunks that have been embedded.
	StateKeyCheckpointEmbedded = "checkpoint_embedded"
	// StateKeyCheckpointTimestamp stores when the checkpoint was last updated.
	StateKeyCheckpointTimestamp = "checkpoint_timestamp"
	// StateKeyCheckpointEmbedderModel stores the embedder model id used for this checkpoint,
	// so a resumed run can detect a model change mid-index and refuse with ConfigurationMismatch.
	StateKeyCheckpointEmbedderModel = "checkpoint_embedder_model"
)

// Item represents a single bibliographic entry (one PDF) tracked in a
// profile's library.
type Item struct {
	ID          string // stable id derived from the bibliographic source (e.g. citation key)
	Title       string
	Authors     []string
	Year        int
	PDFPath     string // absolute path to the source PDF
	ContentHash string // hash of the PDF bytes, used to detect changed files on re-index
	PageCount   int
	IndexedAt   time.Time
}

// Chunk represents a retrievable passage of an item's extracted text.
type Chunk struct {
	ID        string // "<item-id>#NNNN", see internal/chunk
	ItemID    string
	Index     int
	Text      string
	Page      int
	CreatedAt time.Time
}

// MetadataStore persists item and chunk metadata, plus runtime state, for a
// single profile's library in SQLite.
type MetadataStore interface {
	// Item operations
	SaveItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	DeleteItem(ctx context.Context, id string) error // cascades to chunks

	// Chunk operations
	SaveChunks(ctx context.Context, chunks []*Chunk) error
	GetChunk(ctx context.Context, id string) (*Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	GetChunksByItem(ctx context.Context, itemID string) ([]*Chunk, error)
	DeleteChunksByItem(ctx context.Context, itemID string) error

	// State operations (key-value store for runtime state)
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Checkpoint operations (for resumable index runs)
	SaveIndexCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error
	LoadIndexCheckpoint(ctx context.Context) (*IndexCheckpoint, error)
	ClearIndexCheckpoint(ctx context.Context) error

	// Lifecycle
	Close() error
}

// IndexCheckpoint represents the saved state of an index run for resume.
type IndexCheckpoint struct {
	Stage         string // "scanning", "extracting", "embedding", "indexing", "complete"
	Total         int    // total chunks to process
	EmbeddedCount int    // chunks embedded so far
	Timestamp     time.Time
	EmbedderModel string
}

// IndexInfo summarizes a profile's index for `libranswer index info`.
type IndexInfo struct {
	Location  string // index data directory for the profile
	ItemCount int
	ChunkCount int

	IndexModel      string // embedding model id used to build the index
	IndexBackend    string // embedding backend inferred from IndexModel: "ollama", "mlx", "static"
	IndexDimensions int

	IndexSizeBytes  int64
	BM25SizeBytes   int64
	VectorSizeBytes int64

	CreatedAt time.Time
	UpdatedAt time.Time

	CurrentModel      string // the profile's currently configured embedding model id
	CurrentBackend    string
	CurrentDimensions int
	Compatible        bool // whether the active index matches CurrentModel
}

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// Document represents a document to be indexed in the sparse (BM25) index.
type Document struct {
	ID      string // chunk ID
	Content string // chunk text
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search over chunk text using the BM25 ranking
// function. Two backends are available (NewBM25IndexWithBackend): bleve,
// which analyzes text through a registered tokenizer/stopword pipeline, and
// SQLite FTS5, which supports concurrent multi-process access.
type BM25Index interface {
	// Index adds documents to the index.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25.
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, docIDs []string) error

	// AllIDs returns all document IDs in the index (for consistency checks).
	AllIDs() ([]string, error)

	// Stats returns index statistics.
	Stats() *IndexStats

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// StopWords is a list of words to filter out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration for bibliographic prose.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English function words filtered out of
// the sparse index, so queries rank on content-bearing terms.
var DefaultStopWords = []string{
	"a", "an", "the", "and", "or", "but", "of", "in", "on", "at", "to",
	"for", "with", "by", "from", "as", "is", "are", "was", "were", "be",
	"been", "being", "it", "its", "this", "that", "these", "those", "he",
	"she", "they", "we", "you", "i", "not", "no", "can", "will", "would",
	"should", "could", "has", "have", "had", "do", "does", "did", "than",
	"then", "so", "if", "which", "who", "whom", "what", "when", "where",
}

// VectorResult represents a single dense-retrieval result.
type VectorResult struct {
	ID       string  // chunk ID
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// VectorStoreConfig configures the dense vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension, determined by the embedding model
	// (768 for the default model; providers may emit other sizes).
	Dimensions int

	// Quantization is the vector precision: "f32", "f16", "i8" (default: "f16").
	Quantization string

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos").
	Metric string

	// M is HNSW max connections per layer (default: 32).
	M int

	// EfConstruction is the HNSW build-time search width (default: 128).
	EfConstruction int

	// EfSearch is the HNSW query-time search width (default: 64).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the dense store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions:     dimensions,
		Quantization:   "f16",
		Metric:         "cos",
		M:              32,
		EfConstruction: 128,
		EfSearch:       64,
	}
}

// VectorStore provides dense semantic search using the HNSW algorithm.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds k nearest neighbors to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all vector IDs in the store (for consistency checks).
	AllIDs() []string

	// Contains checks if ID exists.
	Contains(id string) bool

	// Count returns the number of vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates the embedding dimension no longer matches
// the one the active index was built with. Callers wrap this as a
// ConfigurationMismatch (internal/errors) rather than retrying.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (re-index required)", e.Expected, e.Got)
}

// CollectionName returns the per-embedding-model collection name for a
// store kind ("lib" for the dense store, "bm25" for the sparse index), so
// switching embedding models never mixes incompatible vectors in one
// collection (spec §4.4).
func CollectionName(kind, embeddingModelID string) string {
	return fmt.Sprintf("%s_%s", kind, sanitizeModelID(embeddingModelID))
}

// sanitizeModelID replaces path-unsafe characters in a model id (many
// contain "/", e.g. "nomic-ai/nomic-embed-text-v1.5") so it can be used in a
// filesystem path or collection name.
func sanitizeModelID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
