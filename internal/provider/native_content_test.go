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

func TestNativeContentProvider_Chat_SplitsSystemFromMessages(t *testing.T) {
	var gotReq nativeContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(nativeContentResponse{
			Content: []struct {
				Text string `json:"text"`
			}{{Text: "native answer"}},
		})
	}))
	defer server.Close()

	p := NewNativeContentProvider(NativeContentConfig{
		ProviderID: "anthropic", BaseURL: server.URL, APIKey: "secret",
		APIKeyHeader: "x-api-key", VersionHeader: "anthropic-version", APIVersion: "2023-06-01",
	})

	resp, err := p.Chat(context.Background(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "hi"},
	}, "claude-3-5-sonnet-20240620", Options{})
	require.NoError(t, err)
	assert.Equal(t, "native answer", resp.Text)
	assert.Equal(t, "be terse", gotReq.System)
	require.Len(t, gotReq.Messages, 1)
	assert.Equal(t, "user", gotReq.Messages[0].Role)
}

func TestNativeContentProvider_Chat_DefaultsMaxTokensWhenUnset(t *testing.T) {
	var gotReq nativeContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(nativeContentResponse{})
	}))
	defer server.Close()

	p := NewNativeContentProvider(NativeContentConfig{ProviderID: "anthropic", BaseURL: server.URL, APIKey: "secret"})
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "claude", Options{})
	require.NoError(t, err)
	assert.Equal(t, defaultNativeMaxTokens, gotReq.MaxTokens)
}

func TestNativeContentProvider_ListModels_Unsupported(t *testing.T) {
	p := NewNativeContentProvider(NativeContentConfig{ProviderID: "anthropic"})
	_, err := p.ListModels(context.Background())
	require.Error(t, err)
}

func TestNativeContentProvider_Validate_RequiresAPIKey(t *testing.T) {
	p := NewNativeContentProvider(NativeContentConfig{ProviderID: "anthropic"})
	err := p.Validate(context.Background())
	require.Error(t, err)
}
