package rerank

import "strings"

// NewReranker builds a Reranker from an endpoint string. An empty endpoint
// (the default when no cross-encoder service is configured) returns a
// NoOpReranker so the pipeline degrades to retrieval-order results instead
// of failing.
func NewReranker(endpoint, model string) (Reranker, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &NoOpReranker{}, nil
	}
	cfg := DefaultHTTPConfig(endpoint)
	cfg.Model = model
	return NewHTTPReranker(cfg)
}
