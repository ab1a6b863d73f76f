package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Default HTTP client tuning for the cross-encoder endpoint. A cross-encoder
// pass is more expensive per call than an embedding call but operates on a
// bounded candidate set (MaxCandidates), so a single generous timeout is
// enough; no progressive/thermal timeout scaling is needed here the way
// internal/embed's Ollama client needs it for long batch runs.
const (
	DefaultRerankTimeout    = 30 * time.Second
	DefaultRerankMaxRetries = 2
	DefaultRerankPoolSize   = 4
)

// HTTPConfig configures the HTTP cross-encoder client.
type HTTPConfig struct {
	// Endpoint is the base URL of the cross-encoder scoring service.
	Endpoint string
	// Model identifies the cross-encoder model to the backend, if it serves more than one.
	Model string
	// Timeout bounds a single scoring request.
	Timeout time.Duration
	// MaxRetries is the number of attempts on transient failure.
	MaxRetries int
}

// DefaultHTTPConfig returns sensible defaults.
func DefaultHTTPConfig(endpoint string) HTTPConfig {
	return HTTPConfig{
		Endpoint:   endpoint,
		Timeout:    DefaultRerankTimeout,
		MaxRetries: DefaultRerankMaxRetries,
	}
}

// scoreRequest is the cross-encoder service's request body: a query paired
// with the candidate passages to score against it.
type scoreRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

// scoreResponse carries one score per input document, in input order.
type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// HTTPReranker calls an HTTP cross-encoder scoring endpoint (e.g. a local
// reranker server exposing a /rerank-style API). It is the only concrete
// Reranker backend named in SPEC_FULL.md §5: the spec names no vendor, so
// the wire shape here is a minimal (query, documents) -> scores contract
// that a self-hosted cross-encoder server can implement directly.
type HTTPReranker struct {
	client    *http.Client
	transport *http.Transport
	config    HTTPConfig

	mu     sync.RWMutex
	closed bool
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker backed by an HTTP cross-encoder service.
func NewHTTPReranker(cfg HTTPConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rerank: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRerankTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultRerankMaxRetries
	}

	transport := &http.Transport{
		MaxIdleConns:        DefaultRerankPoolSize,
		MaxIdleConnsPerHost: DefaultRerankPoolSize,
		IdleConnTimeout:     10 * time.Second,
	}
	client := &http.Client{Transport: transport}

	return &HTTPReranker{
		client:    client,
		transport: transport,
		config:    cfg,
	}, nil
}

// Rerank scores documents against query via the configured HTTP endpoint.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return nil, nil
	}
	if len(documents) > MaxCandidates {
		return nil, fmt.Errorf("rerank: %d documents exceeds max candidates %d", len(documents), MaxCandidates)
	}

	scores, err := r.scoreWithRetry(ctx, query, documents)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(documents) {
		return nil, fmt.Errorf("rerank: backend returned %d scores for %d documents", len(scores), len(documents))
	}

	results := make([]Result, len(documents))
	for i, doc := range documents {
		results[i] = Result{Index: i, Score: scores[i], Passage: doc}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (r *HTTPReranker) scoreWithRetry(ctx context.Context, query string, documents []string) ([]float64, error) {
	var lastErr error
	for attempt := 0; attempt < r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		scores, err := r.doScore(timeoutCtx, query, documents)
		cancel()
		if err == nil {
			return scores, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("rerank failed after %d attempts: %w", r.config.MaxRetries, lastErr)
}

func (r *HTTPReranker) doScore(ctx context.Context, query string, documents []string) ([]float64, error) {
	reqBody := scoreRequest{Model: r.config.Model, Query: query, Documents: documents}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := r.config.Endpoint + "/rerank"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reranker: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Scores, nil
}

// Available checks whether the reranker endpoint is reachable.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases resources.
func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.transport != nil {
		r.transport.CloseIdleConnections()
	}
	return nil
}
