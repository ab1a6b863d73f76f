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

func TestLocalProvider_Chat_ReturnsMessageContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message:         struct{ Content string `json:"content"` }{Content: "hello there"},
			Done:            true,
			PromptEvalCount: 5,
			EvalCount:       3,
		})
	}))
	defer server.Close()

	p := NewLocalProvider(LocalConfig{Host: server.URL})
	resp, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "llama3", Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, 5, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
}

func TestLocalProvider_Chat_NonOKStatusErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	p := NewLocalProvider(LocalConfig{Host: server.URL})
	_, err := p.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "llama3", Options{})
	require.Error(t, err)
}

func TestLocalProvider_Validate_ChecksTagsEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := NewLocalProvider(LocalConfig{Host: server.URL})
	assert.NoError(t, p.Validate(context.Background()))
}

func TestLocalProvider_ListModels_ParsesTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaTagsResponse{Models: []struct {
			Name string `json:"name"`
		}{{Name: "llama3"}, {Name: "qwen3:0.6b"}}})
	}))
	defer server.Close()

	p := NewLocalProvider(LocalConfig{Host: server.URL})
	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3", models[0].ID)
}

func TestOllamaOptions_OmitsUnsetFields(t *testing.T) {
	assert.Nil(t, ollamaOptions(Options{}))

	temp := 0.2
	opts := ollamaOptions(Options{Temperature: &temp})
	assert.Equal(t, 0.2, opts["temperature"])
	assert.NotContains(t, opts, "top_p")
}

func TestNewLocalProvider_DefaultsHost(t *testing.T) {
	p := NewLocalProvider(LocalConfig{})
	assert.Equal(t, DefaultLocalHost, p.host)
}
