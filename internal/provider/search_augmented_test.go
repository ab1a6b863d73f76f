package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchAugmentedProvider_Chat_ForcesDisableExtras(t *testing.T) {
	var gotReq searchAugmentedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(searchAugmentedResponse{
			Choices: []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			}{{Message: struct {
				Content string `json:"content"`
			}{Content: "grounded answer"}}},
		})
	}))
	defer server.Close()

	p := NewSearchAugmentedProvider(SearchAugmentedConfig{ProviderID: "perplexity", BaseURL: server.URL, APIKey: "key"})
	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "sonar", Options{})
	require.NoError(t, err)
	assert.Equal(t, "grounded answer", resp.Text)

	// The regression-test requirement from spec §9: these must be forced
	// regardless of what the caller passed in Options.
	assert.False(t, gotReq.ReturnCitations)
	assert.True(t, gotReq.DisableSearch)
}

func TestSearchAugmentedProvider_Chat_DisablesExtrasEvenWithOptionsSet(t *testing.T) {
	var gotReq searchAugmentedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(searchAugmentedResponse{})
	}))
	defer server.Close()

	p := NewSearchAugmentedProvider(SearchAugmentedConfig{ProviderID: "perplexity", BaseURL: server.URL, APIKey: "key"})
	temp := 0.7
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "sonar", Options{Temperature: &temp})
	require.NoError(t, err)
	assert.False(t, gotReq.ReturnCitations)
	assert.True(t, gotReq.DisableSearch)
}

func TestSearchAugmentedProvider_Validate_RequiresAPIKey(t *testing.T) {
	p := NewSearchAugmentedProvider(SearchAugmentedConfig{ProviderID: "perplexity"})
	require.Error(t, p.Validate(context.Background()))
}
