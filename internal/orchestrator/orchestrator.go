// Package orchestrator implements the C9 chat orchestrator: the
// coordination core that turns one user question into a persisted,
// evidence-backed answer (spec §4.9). It is the only component that calls
// every other core module in sequence — C7 for history, C8 for
// condensation, C1/C4 for retrieval, C2 for reranking, and C6 for
// generation — so spec §4.9's step ordering lives here, not scattered
// across its dependencies.
//
// Grounded on teacher internal/search/engine.go's multi-stage
// retrieve→fuse→rerank pipeline coordinator, generalized to add
// condensation, turn-aware prompt construction, and conversational
// persistence, none of which the teacher's one-shot search tool needs.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/libranswer/libranswer/internal/condense"
	"github.com/libranswer/libranswer/internal/convo"
	"github.com/libranswer/libranswer/internal/embed"
	liberrors "github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/provider"
	"github.com/libranswer/libranswer/internal/rerank"
	"github.com/libranswer/libranswer/internal/store"
	"github.com/libranswer/libranswer/internal/telemetry"
)

const (
	// hybridCandidateK is the k passed to C4.QueryHybrid — spec §4.9 step 3
	// calls for "≈15-25 chunks".
	hybridCandidateK = 20

	// rerankTopK is how many of the hybrid candidates the cross-encoder
	// retains, spec §4.9 step 4.
	rerankTopK = 10

	// maxChunksPerItem and maxChunksTotal are the diversity filter's bounds,
	// spec §4.9 step 5.
	maxChunksPerItem = 3
	maxChunksTotal   = 6

	// defaultHistoryTokenBudget is the C9 ListMessages budget (spec §4.7)
	// applied when no profile overrides it via Settings.HistoryTokenBudget.
	defaultHistoryTokenBudget = 6000
)

// Orchestrator wires C1 (embedder), C4 (library), C2 (reranker), C6
// (provider), and C7 (conversation store) together for one profile.
type Orchestrator struct {
	embedder embed.Embedder
	library  *store.Library
	reranker rerank.Reranker
	sessions *convo.Store
	provider provider.Provider
	model    string

	// metrics is optional; when set, every Chat call records a query
	// event (spec §6 supplemented query-telemetry feature). nil by
	// default, so constructing an Orchestrator never requires a metrics
	// backend.
	metrics *telemetry.QueryMetrics

	// historyTokenBudget is the budget passed to C7's ListMessages on
	// every turn (spec §4.7). Zero means "use defaultHistoryTokenBudget",
	// set by SetHistoryBudget from the active profile's
	// Settings.HistoryTokenBudget.
	historyTokenBudget int
}

// SetMetrics attaches a query telemetry collector. Passing nil disables
// recording.
func (o *Orchestrator) SetMetrics(m *telemetry.QueryMetrics) {
	o.metrics = m
}

// SetHistoryBudget overrides the token budget applied to conversation
// history on each turn. A non-positive value resets it to
// defaultHistoryTokenBudget.
func (o *Orchestrator) SetHistoryBudget(tokenBudget int) {
	o.historyTokenBudget = tokenBudget
}

func (o *Orchestrator) historyBudget() int {
	if o.historyTokenBudget > 0 {
		return o.historyTokenBudget
	}
	return defaultHistoryTokenBudget
}

// New constructs an Orchestrator. All dependencies are required; callers
// get one Orchestrator per active profile (spec §4.10's rebind-on-switch
// replaces the whole struct, it never mutates fields of a live one).
func New(embedder embed.Embedder, library *store.Library, reranker rerank.Reranker, sessions *convo.Store, p provider.Provider, model string) *Orchestrator {
	return &Orchestrator{
		embedder: embedder,
		library:  library,
		reranker: reranker,
		sessions: sessions,
		provider: p,
		model:    model,
	}
}

// Citation is one numbered reference attached to an answer.
type Citation struct {
	ID      int
	Title   string
	Authors []string
	Year    int
	Page    int
	PDFPath string
}

// Result is what Chat returns to the caller: the answer text, its ordered
// citation list, and the full evidence snippets (spec §4.9 step 8).
type Result struct {
	Answer    string
	Citations []Citation
	Snippets  []convo.Snippet
}

// Chat runs one full turn of spec §4.9 against sessionID and records its
// latency and result count to the optional telemetry collector set via
// SetMetrics. The turn itself lives in chatTurn; this wrapper exists so
// every one of chatTurn's several early-return paths is measured
// uniformly instead of threading timing through each of them.
func (o *Orchestrator) Chat(ctx context.Context, sessionID, query string) (*Result, error) {
	start := time.Now()
	result, err := o.chatTurn(ctx, sessionID, query)
	if o.metrics != nil {
		resultCount := 0
		if result != nil {
			resultCount = len(result.Citations)
		}
		o.metrics.Record(telemetry.QueryEvent{
			Query:       query,
			QueryType:   telemetry.QueryTypeMixed,
			ResultCount: resultCount,
			Latency:     time.Since(start),
			Timestamp:   start,
		})
	}
	return result, err
}

// chatTurn is spec §4.9's pipeline: load history, decide and apply
// condensation, retrieve, rerank, diversity-filter, build the
// turn-appropriate prompt, persist both sides of the turn, and return
// the answer with its evidence.
func (o *Orchestrator) chatTurn(ctx context.Context, sessionID, query string) (*Result, error) {
	sess, err := o.sessions.GetSession(sessionID)
	if err != nil {
		return nil, liberrors.ValidationErr("unknown session", err)
	}

	priorUserTurns := countUserTurns(sess.Messages)
	firstTurn := priorUserTurns == 0

	retrievalQuery := query
	if !firstTurn && condense.ShouldCondense(query, priorUserTurns) {
		retrievalQuery, err = condense.Condense(ctx, o.provider, o.model, toHistoryTurns(sess.Messages), query)
		if err != nil {
			return nil, err
		}
	}

	vec, err := o.embedder.Embed(ctx, retrievalQuery)
	if err != nil {
		return nil, liberrors.StoreError("embed retrieval query", err)
	}

	hybrid, err := o.library.QueryHybrid(ctx, vec, retrievalQuery, hybridCandidateK)
	if err != nil {
		return nil, liberrors.StoreError("hybrid retrieval failed", err)
	}
	if len(hybrid) == 0 {
		return o.respondWithNoEvidence(ctx, sess, query, firstTurn)
	}

	chunks, err := o.resolveChunks(ctx, hybrid)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return o.respondWithNoEvidence(ctx, sess, query, firstTurn)
	}

	ranked, err := o.rerankChunks(ctx, retrievalQuery, chunks)
	if err != nil {
		return nil, err
	}

	selected := diversityFilter(ranked, maxChunksPerItem, maxChunksTotal)
	snippets, err := o.buildSnippets(ctx, selected)
	if err != nil {
		return nil, err
	}

	userContent := buildUserMessage(query, snippets, firstTurn)
	if err := o.sessions.AppendMessage(sessionID, convo.Message{Role: convo.RoleUser, Content: userContent}); err != nil {
		return nil, liberrors.StoreError("persist user message", err)
	}

	trimmed, err := o.sessions.ListMessages(sessionID, o.historyBudget())
	if err != nil {
		return nil, liberrors.StoreError("reload session history", err)
	}

	resp, err := o.provider.Chat(ctx, toProviderMessages(trimmed), o.model, provider.Options{})
	if err != nil {
		// Per spec §4.9: a generation failure is surfaced verbatim, never
		// masked by silently returning the top snippet as the answer.
		return nil, liberrors.ProviderErr("answer generation failed", err)
	}

	if err := o.sessions.AppendMessage(sessionID, convo.Message{
		Role:     convo.RoleAssistant,
		Content:  resp.Text,
		Evidence: snippets,
	}); err != nil {
		return nil, liberrors.StoreError("persist assistant message", err)
	}

	return &Result{
		Answer:    resp.Text,
		Citations: citationsFromSnippets(snippets),
		Snippets:  snippets,
	}, nil
}

// respondWithNoEvidence persists and answers a turn with no retrieved
// evidence, rather than failing the whole turn — an empty library or a
// query with no matches is not an error condition.
func (o *Orchestrator) respondWithNoEvidence(ctx context.Context, sess *convo.Session, query string, firstTurn bool) (*Result, error) {
	userContent := buildUserMessage(query, nil, firstTurn)
	if err := o.sessions.AppendMessage(sess.ID, convo.Message{Role: convo.RoleUser, Content: userContent}); err != nil {
		return nil, liberrors.StoreError("persist user message", err)
	}
	trimmed, err := o.sessions.ListMessages(sess.ID, o.historyBudget())
	if err != nil {
		return nil, liberrors.StoreError("reload session history", err)
	}
	resp, err := o.provider.Chat(ctx, toProviderMessages(trimmed), o.model, provider.Options{})
	if err != nil {
		return nil, liberrors.ProviderErr("answer generation failed", err)
	}
	if err := o.sessions.AppendMessage(sess.ID, convo.Message{Role: convo.RoleAssistant, Content: resp.Text}); err != nil {
		return nil, liberrors.StoreError("persist assistant message", err)
	}
	return &Result{Answer: resp.Text}, nil
}

type rankedChunk struct {
	chunk *store.Chunk
	score float64
}

func (o *Orchestrator) resolveChunks(ctx context.Context, hybrid []store.HybridResult) ([]*store.Chunk, error) {
	ids := make([]string, len(hybrid))
	for i, h := range hybrid {
		ids[i] = h.ChunkID
	}
	chunks, err := o.library.GetChunks(ctx, ids)
	if err != nil {
		return nil, liberrors.StoreError("resolve candidate chunks", err)
	}
	return chunks, nil
}

func (o *Orchestrator) rerankChunks(ctx context.Context, query string, chunks []*store.Chunk) ([]rankedChunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	results, err := o.reranker.Rerank(ctx, query, texts, rerankTopK)
	if err != nil {
		return nil, liberrors.StoreError("rerank candidates", err)
	}
	ranked := make([]rankedChunk, len(results))
	for i, r := range results {
		ranked[i] = rankedChunk{chunk: chunks[r.Index], score: r.Score}
	}
	return ranked, nil
}

// diversityFilter implements spec §4.9 step 5: iterate the reranked list in
// order, admitting at most perItem chunks from the same source item and at
// most total chunks overall. Ties (not applicable here since input is
// already score-ordered) are broken by score then lower page number per
// the reranked input order itself.
func diversityFilter(ranked []rankedChunk, perItem, total int) []rankedChunk {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].chunk.Page < ranked[j].chunk.Page
	})

	perItemCount := make(map[string]int)
	selected := make([]rankedChunk, 0, total)
	for _, r := range ranked {
		if len(selected) >= total {
			break
		}
		if perItemCount[r.chunk.ItemID] >= perItem {
			continue
		}
		selected = append(selected, r)
		perItemCount[r.chunk.ItemID]++
	}
	return selected
}

func (o *Orchestrator) buildSnippets(ctx context.Context, selected []rankedChunk) ([]convo.Snippet, error) {
	itemCache := make(map[string]*store.Item)
	snippets := make([]convo.Snippet, 0, len(selected))
	for i, r := range selected {
		item, ok := itemCache[r.chunk.ItemID]
		if !ok {
			var err error
			item, err = o.library.GetItem(ctx, r.chunk.ItemID)
			if err != nil {
				return nil, liberrors.StoreError("resolve source item metadata", err)
			}
			itemCache[r.chunk.ItemID] = item
		}
		snippets = append(snippets, convo.Snippet{
			ChunkID:    r.chunk.ID,
			CitationID: i + 1,
			Text:       r.chunk.Text,
			Title:      item.Title,
			Authors:    item.Authors,
			Year:       item.Year,
			Page:       r.chunk.Page,
			PDFPath:    item.PDFPath,
		})
	}
	return snippets, nil
}

// buildUserMessage constructs the LLM-facing user message, which differs
// critically by turn (spec §4.9 step 6). The first turn embeds a delimited
// evidence block; every follow-up turn is the plain question with nothing
// else, since re-injecting instructions on a follow-up causes the model to
// acknowledge them as a new directive instead of answering.
func buildUserMessage(query string, snippets []convo.Snippet, firstTurn bool) string {
	if !firstTurn {
		return query
	}

	var b strings.Builder
	b.WriteString(query)
	if len(snippets) == 0 {
		return b.String()
	}
	b.WriteString("\n\n--- EVIDENCE ---\n")
	for _, s := range snippets {
		b.WriteString(fmt.Sprintf("[%d] %s", s.CitationID, s.Title))
		if len(s.Authors) > 0 {
			b.WriteString(" (" + strings.Join(s.Authors, ", "))
			if s.Year > 0 {
				b.WriteString(fmt.Sprintf(", %d", s.Year))
			}
			b.WriteString(")")
		}
		if s.Page > 0 {
			b.WriteString(fmt.Sprintf(", p.%d", s.Page))
		}
		b.WriteString("\n")
		b.WriteString(s.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("--- END EVIDENCE ---")
	return b.String()
}

func citationsFromSnippets(snippets []convo.Snippet) []Citation {
	citations := make([]Citation, len(snippets))
	for i, s := range snippets {
		citations[i] = Citation{
			ID:      s.CitationID,
			Title:   s.Title,
			Authors: s.Authors,
			Year:    s.Year,
			Page:    s.Page,
			PDFPath: s.PDFPath,
		}
	}
	return citations
}

func countUserTurns(messages []convo.Message) int {
	n := 0
	for _, m := range messages {
		if m.Role == convo.RoleUser {
			n++
		}
	}
	return n
}

func toHistoryTurns(messages []convo.Message) []condense.HistoryTurn {
	turns := make([]condense.HistoryTurn, 0, len(messages))
	for _, m := range messages {
		if m.Role == convo.RoleSystem {
			continue
		}
		turns = append(turns, condense.HistoryTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

func toProviderMessages(messages []convo.Message) []provider.Message {
	out := make([]provider.Message, len(messages))
	for i, m := range messages {
		out[i] = provider.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
