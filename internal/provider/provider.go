// Package provider implements the C6 provider abstraction: a closed set of
// chat-completion backends behind one interface, selected per profile by
// provider_id (spec §4.6, §4.10). Grounded on the teacher's
// internal/index/contextual_llm.go (a minimal Ollama HTTP client used there
// for chunk-context generation), generalized into a multi-variant chat
// client since the teacher never needed more than one LLM call site.
package provider

import (
	"context"
	"time"
)

// Message is one turn in a chat request.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Options is the recognized generation knob set from spec §4.6. A provider
// that doesn't natively accept a knob ignores it silently rather than
// failing — the zero value of every field means "use the provider's
// default", not "set to zero".
type Options struct {
	Temperature       *float64
	MaxOutputTokens   *int
	TopP              *float64
	TopK              *int
	FrequencyPenalty  *float64
	RepetitionPenalty *float64
}

// Usage carries optional token accounting from a chat response.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResponse is what every provider variant returns from Chat.
type ChatResponse struct {
	Text  string
	Usage *Usage // nil if the provider didn't report usage
}

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	ID    string
	Label string
}

// Provider is the capability set spec §4.6 names: id, label, validate,
// list models, chat. Exceptions from Chat are never swallowed — they
// propagate to C9 for diagnosis (spec §4.6, §4.9's GenerationError / §7's
// ProviderError).
type Provider interface {
	ID() string
	Label() string
	Validate(ctx context.Context) error
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Chat(ctx context.Context, messages []Message, model string, opts Options) (*ChatResponse, error)
}

// DefaultTimeout bounds a single chat or validate call when the caller's
// context carries no deadline of its own.
const DefaultTimeout = 60 * time.Second
