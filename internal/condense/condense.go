// Package condense implements the C8 query condenser: deciding when a
// follow-up question depends on prior conversational context, and, when it
// does, rewriting it into a standalone retrieval query via an LLM call
// through the provider abstraction (spec §4.8). The rewritten query is used
// for retrieval only — the original question remains what the user sees
// and what gets persisted as the user-visible message.
//
// ShouldCondense's keyword-trigger gate is grounded on
// internal/search/decomposer.go's PatternDecomposer.ShouldDecompose (a
// pure-function, regex/keyword-based "does this query need special
// handling" gate run before any LLM call). Condense's actual LLM
// invocation is grounded on internal/index/contextual_llm.go's minimal
// single-purpose prompt-and-parse shape, now routed through the C6
// provider abstraction instead of a dedicated Ollama client.
package condense

import (
	"context"
	"fmt"
	"strings"

	"github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/provider"
)

// pronouns, ellipticalConnectors, and comparativeWords implement the
// trigger vocabulary from spec §4.8; comparativeWords also accepts the
// abbreviation "vs".
var (
	pronouns = []string{"it", "they", "that", "these", "those"}

	ellipticalConnectors = []string{"what about", "how about", "also"}

	comparativeWords = []string{"overlap", "versus", "vs", "compare", "relationship"}
)

const comparativeTokenCeiling = 8

// ShouldCondense reports whether query should be rewritten against history
// before retrieval. It returns false unconditionally when history contains
// no prior user turn: condensation only ever resolves references to
// something already said (spec §4.8).
func ShouldCondense(query string, priorUserTurns int) bool {
	if priorUserTurns == 0 {
		return false
	}

	lower := strings.ToLower(query)

	for _, p := range pronouns {
		if containsWord(lower, p) {
			return true
		}
	}
	for _, c := range ellipticalConnectors {
		if strings.Contains(lower, c) {
			return true
		}
	}
	for _, c := range comparativeWords {
		if strings.Contains(lower, c) && tokenCount(query) < comparativeTokenCeiling {
			return true
		}
	}
	return false
}

// containsWord checks for p as a whole word in lower, not merely a
// substring (so "it" doesn't match inside "permit" or "editor").
func containsWord(lower, word string) bool {
	for _, tok := range strings.Fields(lower) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if tok == word {
			return true
		}
	}
	return false
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}

// HistoryTurn is the minimal view of a prior turn the condenser needs: just
// enough text to let the LLM resolve references, without pulling in the
// full convo.Message/Evidence shape.
type HistoryTurn struct {
	Role    string
	Content string
}

const (
	condenseTemperature     = 0.2
	condenseMaxOutputTokens = 150

	condenseSystemPrompt = "You rewrite a follow-up question into a standalone question " +
		"using only the conversation so far. Output ONLY the standalone question — no " +
		"explanations, no preamble, no quotation marks."
)

// Condense asks p to rewrite query into a standalone question, given the
// prior turns. Returns a *errors.LibError wrapping the provider failure
// (category ProviderError) on any LLM error — the caller must treat a
// condensation failure as fatal, per spec §4.9's retrieval-before-
// generation ordering, not silently fall back to the raw query.
func Condense(ctx context.Context, p provider.Provider, model string, history []HistoryTurn, query string) (string, error) {
	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: "system", Content: condenseSystemPrompt})
	for _, h := range history {
		messages = append(messages, provider.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, provider.Message{
		Role:    "user",
		Content: fmt.Sprintf("Follow-up question: %s\n\nStandalone question:", query),
	})

	temp := condenseTemperature
	maxTokens := condenseMaxOutputTokens
	resp, err := p.Chat(ctx, messages, model, provider.Options{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	})
	if err != nil {
		return "", errors.ProviderErr("query condensation failed", err)
	}

	standalone := strings.TrimSpace(resp.Text)
	if standalone == "" {
		return "", errors.ProviderErr("query condensation returned an empty question", nil)
	}
	return standalone, nil
}
