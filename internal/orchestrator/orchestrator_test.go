package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/libranswer/libranswer/internal/convo"
	"github.com/libranswer/libranswer/internal/provider"
	"github.com/libranswer/libranswer/internal/rerank"
	"github.com/libranswer/libranswer/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLibrary(t *testing.T, dims int) *store.Library {
	t.Helper()
	vec, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = vec.Close() })

	bm25, err := store.NewBleveBM25Index("", store.DefaultBM25Config())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bm25.Close() })

	meta, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	return store.NewLibrary("fake-model", dims, vec, bm25, meta)
}

func seedChunk(t *testing.T, lib *store.Library, itemID, chunkID, text string, page int, vec []float32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, lib.SaveItem(ctx, &store.Item{ID: itemID, Title: "Attention Is All You Need", Authors: []string{"Vaswani"}, Year: 2017, PDFPath: "/papers/" + itemID + ".pdf"}))
	require.NoError(t, lib.Upsert(ctx, &store.Chunk{ID: chunkID, ItemID: itemID, Page: page, Text: text, CreatedAt: time.Now()}, vec))
}

type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int                    { return f.dims }
func (f *fakeEmbedder) ModelName() string                  { return "fake" }
func (f *fakeEmbedder) Available(ctx context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                       { return nil }
func (f *fakeEmbedder) SetBatchIndex(idx int)               {}
func (f *fakeEmbedder) SetFinalBatch(isFinal bool)          {}

type fakeReranker struct{}

func (fakeReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]rerank.Result, error) {
	results := make([]rerank.Result, len(documents))
	for i, d := range documents {
		results[i] = rerank.Result{Index: i, Score: float64(len(documents) - i), Passage: d}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}
func (fakeReranker) Available(ctx context.Context) bool { return true }
func (fakeReranker) Close() error                        { return nil }

type fakeProvider struct {
	answer  string
	err     error
	lastMsg []provider.Message
}

func (f *fakeProvider) ID() string    { return "fake" }
func (f *fakeProvider) Label() string { return "fake" }
func (f *fakeProvider) Validate(ctx context.Context) error { return nil }
func (f *fakeProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}
func (f *fakeProvider) Chat(ctx context.Context, messages []provider.Message, model string, opts provider.Options) (*provider.ChatResponse, error) {
	f.lastMsg = messages
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ChatResponse{Text: f.answer}, nil
}

func newTestOrchestrator(t *testing.T, lib *store.Library, p *fakeProvider) (*Orchestrator, *convo.Store) {
	t.Helper()
	sessions, err := convo.NewStore(t.TempDir())
	require.NoError(t, err)
	o := New(&fakeEmbedder{dims: 4}, lib, fakeReranker{}, sessions, p, "model-x")
	return o, sessions
}

func TestOrchestrator_Chat_FirstTurnEmbedsEvidenceBlock(t *testing.T) {
	lib := newTestLibrary(t, 4)
	seedChunk(t, lib, "item1", "item1#0000", "the transformer relies entirely on attention", 3, []float32{1, 0, 0, 0})

	p := &fakeProvider{answer: "The transformer uses attention."}
	o, sessions := newTestOrchestrator(t, lib, p)

	sess, err := sessions.CreateSession("you are a librarian")
	require.NoError(t, err)

	result, err := o.Chat(context.Background(), sess.ID, "how does the transformer work?")
	require.NoError(t, err)
	assert.Equal(t, "The transformer uses attention.", result.Answer)
	require.Len(t, result.Snippets, 1)
	assert.Equal(t, "Attention Is All You Need", result.Snippets[0].Title)

	require.NotEmpty(t, p.lastMsg)
	lastUser := p.lastMsg[len(p.lastMsg)-1]
	assert.Contains(t, lastUser.Content, "EVIDENCE")
	assert.Contains(t, lastUser.Content, "the transformer relies entirely on attention")
}

func TestOrchestrator_Chat_FollowUpTurnHasNoEvidenceBlock(t *testing.T) {
	lib := newTestLibrary(t, 4)
	seedChunk(t, lib, "item1", "item1#0000", "attention weights are computed via softmax", 5, []float32{1, 0, 0, 0})

	p := &fakeProvider{answer: "first answer"}
	o, sessions := newTestOrchestrator(t, lib, p)
	sess, err := sessions.CreateSession("sys")
	require.NoError(t, err)

	_, err = o.Chat(context.Background(), sess.ID, "what is attention?")
	require.NoError(t, err)

	p.answer = "second answer"
	_, err = o.Chat(context.Background(), sess.ID, "what about softmax?")
	require.NoError(t, err)

	var userMessages []provider.Message
	for _, m := range p.lastMsg {
		if m.Role == convo.RoleUser {
			userMessages = append(userMessages, m)
		}
	}
	require.NotEmpty(t, userMessages)
	lastUser := userMessages[len(userMessages)-1]
	assert.Equal(t, "what about softmax?", lastUser.Content)
	assert.NotContains(t, lastUser.Content, "EVIDENCE")
}

func TestOrchestrator_Chat_DiversityFilterCapsPerItemAndTotal(t *testing.T) {
	lib := newTestLibrary(t, 4)
	for i := 0; i < 5; i++ {
		seedChunk(t, lib, "item1", "item1#000"+string(rune('0'+i)), "attention passage number", i, []float32{1, 0, 0, 0})
	}
	for i := 0; i < 5; i++ {
		seedChunk(t, lib, "item2", "item2#000"+string(rune('0'+i)), "attention passage alt", i, []float32{1, 0, 0, 0})
	}

	p := &fakeProvider{answer: "answer"}
	o, sessions := newTestOrchestrator(t, lib, p)
	sess, err := sessions.CreateSession("sys")
	require.NoError(t, err)

	result, err := o.Chat(context.Background(), sess.ID, "tell me about attention")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(result.Snippets), maxChunksTotal)
	perItem := map[string]int{}
	for _, s := range result.Snippets {
		perItem[s.PDFPath]++
	}
	for _, count := range perItem {
		assert.LessOrEqual(t, count, maxChunksPerItem)
	}
}

func TestOrchestrator_Chat_PersistsUserThenAssistantMessage(t *testing.T) {
	lib := newTestLibrary(t, 4)
	seedChunk(t, lib, "item1", "item1#0000", "attention is all you need", 1, []float32{1, 0, 0, 0})

	p := &fakeProvider{answer: "the answer"}
	o, sessions := newTestOrchestrator(t, lib, p)
	sess, err := sessions.CreateSession("sys")
	require.NoError(t, err)

	_, err = o.Chat(context.Background(), sess.ID, "question")
	require.NoError(t, err)

	got, err := sessions.GetSession(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, convo.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, convo.RoleUser, got.Messages[1].Role)
	assert.Equal(t, convo.RoleAssistant, got.Messages[2].Role)
	assert.Len(t, got.Messages[2].Evidence, 1)
}

func TestOrchestrator_Chat_ProviderFailureIsSurfacedNotMasked(t *testing.T) {
	lib := newTestLibrary(t, 4)
	seedChunk(t, lib, "item1", "item1#0000", "attention is all you need", 1, []float32{1, 0, 0, 0})

	p := &fakeProvider{err: assertError("provider down")}
	o, sessions := newTestOrchestrator(t, lib, p)
	sess, err := sessions.CreateSession("sys")
	require.NoError(t, err)

	_, err = o.Chat(context.Background(), sess.ID, "question")
	require.Error(t, err)
}

func TestOrchestrator_Chat_NoEvidenceStillAnswers(t *testing.T) {
	lib := newTestLibrary(t, 4)
	p := &fakeProvider{answer: "no evidence answer"}
	o, sessions := newTestOrchestrator(t, lib, p)
	sess, err := sessions.CreateSession("sys")
	require.NoError(t, err)

	result, err := o.Chat(context.Background(), sess.ID, "anything?")
	require.NoError(t, err)
	assert.Equal(t, "no evidence answer", result.Answer)
	assert.Empty(t, result.Snippets)
}

type assertError string

func (e assertError) Error() string { return string(e) }
