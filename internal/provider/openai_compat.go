package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// OpenAICompatConfig configures an OpenAI-compatible chat-completions
// backend: the same wire format serves OpenAI itself, Groq, Together, and
// similar HTTP JSON endpoints, differing only in base URL and API key
// (spec §4.6, §5: "one Go type parameterized by base URL").
type OpenAICompatConfig struct {
	ProviderID string // e.g. "openai", "groq", "together"
	Label      string
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
}

const (
	openAICompatMaxRetries     = 4
	openAICompatBaseRetryDelay = 2 * time.Second
	openAICompatMinRateDelay   = 5 * time.Second
)

// OpenAICompatProvider is grounded on
// bbiangul-go-reason/llm/openai_compat.go's openAICompatClient: shared
// /v1/chat/completions request/response shape, Bearer auth, and a
// retry-with-backoff loop honoring Retry-After on 429s.
type OpenAICompatProvider struct {
	id      string
	label   string
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewOpenAICompatProvider builds a provider for one OpenAI-compatible
// endpoint family.
func NewOpenAICompatProvider(cfg OpenAICompatConfig) *OpenAICompatProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenAICompatProvider{
		id:      cfg.ProviderID,
		label:   cfg.Label,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *OpenAICompatProvider) ID() string    { return p.id }
func (p *OpenAICompatProvider) Label() string { return p.label }

func (p *OpenAICompatProvider) Validate(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("build validate request: %w", err)
	}
	p.setAuthHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s unreachable: %w", p.id, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s validate returned status %d", p.id, resp.StatusCode)
	}
	return nil
}

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (p *OpenAICompatProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build list-models request: %w", err)
	}
	p.setAuthHeaders(req)

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

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model            string              `json:"model"`
	Messages         []openAIChatMessage `json:"messages"`
	Temperature      *float64            `json:"temperature,omitempty"`
	MaxTokens        *int                `json:"max_tokens,omitempty"`
	TopP             *float64            `json:"top_p,omitempty"`
	FrequencyPenalty *float64            `json:"frequency_penalty,omitempty"`
}

type openAIChatResponse struct {
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

// Chat ignores TopK and RepetitionPenalty, which have no standard
// chat-completions equivalent — spec §4.6's "ignore silently" contract.
func (p *OpenAICompatProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (*ChatResponse, error) {
	msgs := make([]openAIChatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openAIChatMessage{Role: m.Role, Content: m.Content}
	}

	reqBody := openAIChatRequest{
		Model:            model,
		Messages:         msgs,
		Temperature:      opts.Temperature,
		MaxTokens:        opts.MaxOutputTokens,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
	}

	respBody, err := p.doPost(ctx, "/v1/chat/completions", reqBody)
	if err != nil {
		return nil, err
	}

	var resp openAIChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices in response", p.id)
	}

	return &ChatResponse{
		Text: resp.Choices[0].Message.Content,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (p *OpenAICompatProvider) setAuthHeaders(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func (p *OpenAICompatProvider) doPost(ctx context.Context, path string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := p.baseURL + path
	var lastErr error

	for attempt := 0; attempt <= openAICompatMaxRetries; attempt++ {
		if attempt > 0 {
			delay := openAICompatBaseRetryDelay * time.Duration(1<<(attempt-1))
			slog.Warn("provider: retrying request", slog.String("provider", p.id), slog.Int("attempt", attempt), slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		p.setAuthHeaders(req)

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, nil
		}

		lastErr = fmt.Errorf("%s API error %d: %s", p.id, resp.StatusCode, string(respBody))
		if !retryableStatusCode(resp.StatusCode) {
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := openAICompatMinRateDelay * time.Duration(1<<attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
					if headerDelay := time.Duration(seconds) * time.Second; headerDelay > delay {
						delay = headerDelay
					}
				}
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
