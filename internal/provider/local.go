package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultLocalHost is the default Ollama-compatible endpoint.
const DefaultLocalHost = "http://localhost:11434"

// LocalConfig configures the local (Ollama-compatible) provider variant.
type LocalConfig struct {
	Host    string // base URL, e.g. http://localhost:11434
	Timeout time.Duration
}

// ollamaChatMessage mirrors Ollama's /api/chat message shape.
type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ollamaChatRequest is the /api/chat request body, grounded on
// contextual_llm.go's /api/generate shape extended to the chat endpoint and
// options block.
type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`
}

// LocalProvider is the "local" variant from spec §4.6: an Ollama-compatible
// /api/chat endpoint. Grounded on the teacher's
// internal/index/contextual_llm.go HTTP client shape (client.Timeout,
// context-carrying requests, JSON marshal/unmarshal, an /api/tags
// reachability probe), generalized from a single-purpose context generator
// to the full Provider interface.
type LocalProvider struct {
	client *http.Client
	host   string
}

// NewLocalProvider builds a LocalProvider. An empty Host defaults to
// DefaultLocalHost; an empty Timeout defaults to DefaultTimeout.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	host := cfg.Host
	if host == "" {
		host = DefaultLocalHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LocalProvider{
		client: &http.Client{Timeout: timeout},
		host:   host,
	}
}

func (p *LocalProvider) ID() string    { return "local" }
func (p *LocalProvider) Label() string { return "Local (Ollama)" }

// Validate confirms the endpoint is reachable, grounded on
// contextual_llm.go's Available() /api/tags probe.
func (p *LocalProvider) Validate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build validate request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("local provider unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("local provider returned status %d", resp.StatusCode)
	}
	return nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (p *LocalProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build list-models request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list models: status %d: %s", resp.StatusCode, string(body))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	out := make([]ModelInfo, len(tags.Models))
	for i, m := range tags.Models {
		out[i] = ModelInfo{ID: m.Name, Label: m.Name}
	}
	return out, nil
}

func (p *LocalProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (*ChatResponse, error) {
	req := ollamaChatRequest{
		Model:    model,
		Messages: toOllamaMessages(messages),
		Stream:   false,
		Options:  ollamaOptions(opts),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("local provider status %d: %s", resp.StatusCode, string(respBody))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}

	return &ChatResponse{
		Text: chatResp.Message.Content,
		Usage: &Usage{
			PromptTokens:     chatResp.PromptEvalCount,
			CompletionTokens: chatResp.EvalCount,
		},
	}, nil
}

func toOllamaMessages(messages []Message) []ollamaChatMessage {
	out := make([]ollamaChatMessage, len(messages))
	for i, m := range messages {
		out[i] = ollamaChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// ollamaOptions maps the recognized options set to Ollama's options object.
// A nil field is omitted, letting the provider fall back to its own
// default — spec §4.6's "ignore silently" contract for knobs a backend
// doesn't model natively (Ollama has no frequency/repetition-penalty
// equivalent beyond repeat_penalty, mapped from RepetitionPenalty only).
func ollamaOptions(opts Options) map[string]any {
	out := map[string]any{}
	if opts.Temperature != nil {
		out["temperature"] = *opts.Temperature
	}
	if opts.MaxOutputTokens != nil {
		out["num_predict"] = *opts.MaxOutputTokens
	}
	if opts.TopP != nil {
		out["top_p"] = *opts.TopP
	}
	if opts.TopK != nil {
		out["top_k"] = *opts.TopK
	}
	if opts.RepetitionPenalty != nil {
		out["repeat_penalty"] = *opts.RepetitionPenalty
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
