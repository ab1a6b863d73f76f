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

// SearchAugmentedConfig configures the variant from spec §4.6 that defaults
// to autonomous web search and provider-side citation injection. The core
// supplies its own grounding evidence (spec §4.9's diversity-filtered
// snippets) and must not let the provider silently add its own, so every
// request on this variant forces the documented disable fields.
type SearchAugmentedConfig struct {
	ProviderID string
	Label      string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
}

type searchAugmentedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// searchAugmentedRequest extends the OpenAI chat-completions shape
// (grounded on bbiangul-go-reason/llm/openai_compat.go's
// chatCompletionRequest) with this family's "disable extras" fields.
// ReturnCitations is forced false and DisableSearch true on every call,
// never left to the caller or a
// provider default, per spec §4.6 and §9's explicit regression-test
// requirement.
type searchAugmentedRequest struct {
	Model                string                   `json:"model"`
	Messages             []searchAugmentedMessage `json:"messages"`
	Temperature          *float64                 `json:"temperature,omitempty"`
	MaxTokens            *int                     `json:"max_tokens,omitempty"`
	ReturnCitations      bool                     `json:"return_citations"`
	DisableSearch        bool                     `json:"disable_search"`
	SearchDomainFilter   []string                 `json:"search_domain_filter,omitempty"`
}

type searchAugmentedResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// SearchAugmentedProvider implements the search-augmented variant.
type SearchAugmentedProvider struct {
	cfg    SearchAugmentedConfig
	client *http.Client
}

func NewSearchAugmentedProvider(cfg SearchAugmentedConfig) *SearchAugmentedProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SearchAugmentedProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *SearchAugmentedProvider) ID() string    { return p.cfg.ProviderID }
func (p *SearchAugmentedProvider) Label() string { return p.cfg.Label }

func (p *SearchAugmentedProvider) Validate(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return fmt.Errorf("%s: missing API key", p.cfg.ProviderID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", p.cfg.ProviderID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s validate returned status %d", p.cfg.ProviderID, resp.StatusCode)
	}
	return nil
}

func (p *SearchAugmentedProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build list-models request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list models: status %d: %s", resp.StatusCode, string(body))
	}
	var parsed openAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode models: %w", err)
	}
	out := make([]ModelInfo, len(parsed.Data))
	for i, m := range parsed.Data {
		out[i] = ModelInfo{ID: m.ID, Label: m.ID}
	}
	return out, nil
}

// Chat forces ReturnCitations=false and DisableSearch=true on every call,
// regardless of opts — these are never caller-configurable, per spec §4.6.
func (p *SearchAugmentedProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (*ChatResponse, error) {
	msgs := make([]searchAugmentedMessage, len(messages))
	for i, m := range messages {
		msgs[i] = searchAugmentedMessage{Role: m.Role, Content: m.Content}
	}

	reqBody := searchAugmentedRequest{
		Model:           model,
		Messages:        msgs,
		Temperature:     opts.Temperature,
		MaxTokens:       opts.MaxOutputTokens,
		ReturnCitations: false,
		DisableSearch:   true,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s status %d: %s", p.cfg.ProviderID, resp.StatusCode, string(body))
	}

	var parsed searchAugmentedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices in response", p.cfg.ProviderID)
	}

	return &ChatResponse{
		Text: parsed.Choices[0].Message.Content,
		Usage: &Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
