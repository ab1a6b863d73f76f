// Package rerank scores (query, passage) pairs with a cross-encoder model
// (C2). Rerank is stateless across calls and is invoked on a bounded
// candidate set (at most 30 passages per query per spec §4.2), so its
// higher per-pair cost than cosine similarity is amortized by a small
// constant bound rather than a fast path.
package rerank

import (
	"context"
)

// MaxCandidates is the largest candidate set rerank accepts per call
// (spec §4.2). Callers are responsible for truncating the hybrid
// retrieval result to this bound before calling Rerank.
const MaxCandidates = 30

// Result is a single reranked passage.
type Result struct {
	// Index is the passage's position in the input slice.
	Index int
	// Score is the cross-encoder relevance score (higher is more relevant).
	Score float64
	// Passage is the original passage text.
	Passage string
}

// Reranker scores and reorders passages by relevance to a query using a
// pairwise cross-encoder model (as opposed to cosine similarity over
// separately encoded vectors).
type Reranker interface {
	// Rerank scores documents against query and returns them sorted by
	// score descending. len(documents) must be <= MaxCandidates; nothing
	// truncates here: HTTPReranker returns an error for a larger set, and
	// NoOpReranker accepts any length.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error)

	// Available checks whether the reranker backend is reachable.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOpReranker returns documents in their original order with decreasing
// synthetic scores. Used when no reranker endpoint is configured, or by
// `libranswer doctor` to keep the pipeline functional while reporting the
// reranker as unavailable.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

// Rerank returns documents in original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]Result, error) {
	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{
			Index:   i,
			Score:   1.0 - float64(i)*0.01,
			Passage: doc,
		}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool { return true }

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error { return nil }
