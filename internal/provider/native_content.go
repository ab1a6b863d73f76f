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

// NativeContentConfig configures the non-OpenAI-shaped "native content
// generation" variant (spec §4.6's "one that wraps a native
// content-generation API"). Grounded on
// vasic-digital-SuperAgent/Toolkit/providers/claude/client.go: a distinct
// envelope (system prompt as a top-level field, not a role in the message
// array; auth via a custom header, not Bearer; a required API-version
// header) rather than the OpenAI chat-completions shape.
type NativeContentConfig struct {
	ProviderID   string
	Label        string
	BaseURL      string // e.g. "https://api.anthropic.com"
	APIKey       string
	APIKeyHeader string // e.g. "x-api-key"
	APIVersion   string // value of the version header, if any
	VersionHeader string // e.g. "anthropic-version"
	Timeout      time.Duration
}

type nativeContentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type nativeContentRequest struct {
	Model       string                  `json:"model"`
	System      string                  `json:"system,omitempty"`
	Messages    []nativeContentMessage  `json:"messages"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature *float64                `json:"temperature,omitempty"`
	TopP        *float64                `json:"top_p,omitempty"`
}

type nativeContentResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NativeContentProvider implements the native-content-API variant.
type NativeContentProvider struct {
	cfg    NativeContentConfig
	client *http.Client
}

// defaultNativeMaxTokens is used when Options.MaxOutputTokens is unset,
// since this wire format requires max_tokens on every request (unlike the
// OpenAI shape, where it's optional).
const defaultNativeMaxTokens = 1024

func NewNativeContentProvider(cfg NativeContentConfig) *NativeContentProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &NativeContentProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *NativeContentProvider) ID() string    { return p.cfg.ProviderID }
func (p *NativeContentProvider) Label() string { return p.cfg.Label }

func (p *NativeContentProvider) Validate(ctx context.Context) error {
	if p.cfg.APIKey == "" {
		return fmt.Errorf("%s: missing API key", p.cfg.ProviderID)
	}
	// This wire format has no unauthenticated health endpoint; a minimal
	// chat call with max_tokens=1 is the standard way to validate
	// credentials, matching the teacher's ChatCompletion as the only
	// verified call shape.
	_, err := p.Chat(ctx, []Message{{Role: "user", Content: "ping"}}, p.defaultModel(), Options{MaxOutputTokens: intPtr(1)})
	return err
}

func (p *NativeContentProvider) defaultModel() string { return "" }

func (p *NativeContentProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	// This wire format has no models-listing endpoint; known model ids are
	// the caller's responsibility to configure (teacher's GetModels
	// returns a hardcoded list for the same reason).
	return nil, fmt.Errorf("%s: model listing not supported, configure active_model explicitly", p.cfg.ProviderID)
}

func (p *NativeContentProvider) Chat(ctx context.Context, messages []Message, model string, opts Options) (*ChatResponse, error) {
	var system string
	var turns []nativeContentMessage
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		turns = append(turns, nativeContentMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := defaultNativeMaxTokens
	if opts.MaxOutputTokens != nil {
		maxTokens = *opts.MaxOutputTokens
	}

	reqBody := nativeContentRequest{
		Model:       model,
		System:      system,
		Messages:    turns,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKeyHeader != "" {
		req.Header.Set(p.cfg.APIKeyHeader, p.cfg.APIKey)
	}
	if p.cfg.VersionHeader != "" && p.cfg.APIVersion != "" {
		req.Header.Set(p.cfg.VersionHeader, p.cfg.APIVersion)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s status %d: %s", p.cfg.ProviderID, resp.StatusCode, string(body))
	}

	var parsed nativeContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		text += block.Text
	}

	return &ChatResponse{
		Text: text,
		Usage: &Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
		},
	}, nil
}

func intPtr(v int) *int { return &v }
