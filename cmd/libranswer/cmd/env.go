package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libranswer/libranswer/internal/chunk"
	"github.com/libranswer/libranswer/internal/convo"
	"github.com/libranswer/libranswer/internal/embed"
	liberrors "github.com/libranswer/libranswer/internal/errors"
	"github.com/libranswer/libranswer/internal/orchestrator"
	"github.com/libranswer/libranswer/internal/profile"
	"github.com/libranswer/libranswer/internal/provider"
	"github.com/libranswer/libranswer/internal/rerank"
	"github.com/libranswer/libranswer/internal/store"
	"github.com/libranswer/libranswer/internal/telemetry"
)

// profileRootFlag overrides the default "<home>/.libranswer/profiles" root,
// mirroring the teacher root command's handful of top-level persistent
// flags that redirect where on-disk state lives.
var profileRootFlag string

func defaultProfileRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".libranswer", "profiles")
	}
	return filepath.Join(home, ".libranswer", "profiles")
}

func profileRoot() string {
	if profileRootFlag != "" {
		return profileRootFlag
	}
	return defaultProfileRoot()
}

func newProfileManager() (*profile.Manager, error) {
	return profile.NewManager(profileRoot())
}

// activeProfileOrErr resolves the profile named by explicit, or the active
// one when explicit is empty, surfacing a clear error instead of a
// nil-pointer panic when no profile has been created yet.
func activeProfileOrErr(mgr *profile.Manager, explicit string) (*profile.Metadata, error) {
	if explicit != "" {
		profiles, err := mgr.List()
		if err != nil {
			return nil, err
		}
		for _, p := range profiles {
			if p.Metadata.Slug == explicit {
				meta := p.Metadata
				return &meta, nil
			}
		}
		return nil, liberrors.ValidationErr(fmt.Sprintf("unknown profile %q", explicit), nil)
	}
	return mgr.Active()
}

// environment bundles every component built for one profile's chat/index
// operations, grounded on the teacher root command's pattern of resolving a
// project root once per invocation and threading it through subcommands.
type environment struct {
	mgr          *profile.Manager
	profile      *profile.Metadata
	settings     *profile.Settings
	embedder     embed.Embedder
	vectorStore  *store.HNSWStore
	vectorPath   string
	library      *store.Library
	reranker     rerank.Reranker
	sessions     *convo.Store
	provider     provider.Provider
	orchestrator *orchestrator.Orchestrator
	metrics      *telemetry.QueryMetrics
}

// buildEnvironment wires together C1-C10 for the resolved profile. ctx is
// used only for the embedder's availability probe during construction.
func buildEnvironment(ctx context.Context, profileSlug string) (*environment, error) {
	mgr, err := newProfileManager()
	if err != nil {
		return nil, err
	}
	meta, err := activeProfileOrErr(mgr, profileSlug)
	if err != nil {
		return nil, err
	}
	settings, err := mgr.Settings(meta.Slug)
	if err != nil {
		return nil, err
	}
	if settings.EmbeddingModelID == "" {
		return nil, liberrors.ValidationErr(fmt.Sprintf("profile %q has no embedding_model_id configured; run 'libranswer profile config'", meta.Slug), nil)
	}

	embedderProvider := embed.ProviderOllama
	if settings.EmbeddingModelID == "static" {
		embedderProvider = embed.ProviderStatic
	}
	embedder, err := embed.NewEmbedder(ctx, embedderProvider, settings.EmbeddingModelID)
	if err != nil {
		return nil, liberrors.Wrap("embedder-init-failed", err)
	}

	storeDir := mgr.StoreDir(meta.Slug)
	vectorPath := filepath.Join(storeDir, store.CollectionName("lib", settings.EmbeddingModelID)+".hnsw")
	vecStore, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		return nil, liberrors.Wrap("vector-store-init-failed", err)
	}
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vecStore.Load(vectorPath); err != nil {
			return nil, liberrors.StoreError("load vector store", err)
		}
	}

	sparsePath := filepath.Join(storeDir, store.CollectionName("bm25", settings.EmbeddingModelID))
	sparse, err := store.NewBM25IndexWithBackend(sparsePath, store.DefaultBM25Config(), string(store.BM25BackendSQLite))
	if err != nil {
		return nil, liberrors.Wrap("bm25-index-init-failed", err)
	}
	metadataStore, err := store.NewSQLiteStore(filepath.Join(storeDir, "metadata.db"))
	if err != nil {
		return nil, liberrors.Wrap("metadata-store-init-failed", err)
	}
	library := store.NewLibrary(settings.EmbeddingModelID, embedder.Dimensions(), vecStore, sparse, metadataStore)

	rankr, err := rerank.NewReranker(os.Getenv("LIBRANSWER_RERANK_ENDPOINT"), "")
	if err != nil {
		return nil, liberrors.Wrap("reranker-init-failed", err)
	}

	sessions, err := convo.NewStore(mgr.SessionsDir(meta.Slug))
	if err != nil {
		return nil, err
	}

	if settings.ProviderID == "" {
		return nil, liberrors.ValidationErr(fmt.Sprintf("profile %q has no provider_id configured; run 'libranswer profile config'", meta.Slug), nil)
	}
	p, err := provider.New(provider.Settings{
		ProviderID: settings.ProviderID,
		APIKey:     settings.Credentials,
	})
	if err != nil {
		return nil, err
	}

	orch := orchestrator.New(embedder, library, rankr, sessions, p, settings.ActiveModel)
	if settings.HistoryTokenBudget != nil {
		orch.SetHistoryBudget(*settings.HistoryTokenBudget)
	}

	if err := telemetry.InitTelemetrySchema(metadataStore.DB()); err != nil {
		return nil, liberrors.StoreError("init telemetry schema", err)
	}
	metricsStore, err := telemetry.NewSQLiteMetricsStore(metadataStore.DB())
	if err != nil {
		return nil, liberrors.Wrap("telemetry-store-init-failed", err)
	}
	metrics := telemetry.NewQueryMetrics(metricsStore)
	orch.SetMetrics(metrics)

	return &environment{
		mgr:          mgr,
		profile:      meta,
		settings:     settings,
		embedder:     embedder,
		vectorStore:  vecStore,
		vectorPath:   vectorPath,
		library:      library,
		reranker:     rankr,
		sessions:     sessions,
		provider:     p,
		orchestrator: orch,
		metrics:      metrics,
	}, nil
}

// Close persists the dense index and releases backend resources. Errors
// from Save are surfaced since a failed persist silently loses everything
// indexed this run.
func (e *environment) Close() error {
	var saveErr error
	if e.vectorStore != nil && e.vectorPath != "" {
		saveErr = e.vectorStore.Save(e.vectorPath)
	}
	if e.metrics != nil {
		_ = e.metrics.Close()
	}
	if e.library != nil {
		_ = e.library.Close()
	}
	if e.reranker != nil {
		_ = e.reranker.Close()
	}
	if e.embedder != nil {
		_ = e.embedder.Close()
	}
	if saveErr != nil {
		return liberrors.StoreError("save vector store", saveErr)
	}
	return nil
}

// newChunker builds the C5 chunker with default options.
func newChunker() *chunk.Chunker {
	return chunk.New(chunk.Options{})
}

// newSessionStore opens the C7 conversation store rooted at slug's sessions
// directory, for commands (sessions.go) that only need session bookkeeping
// without standing up the full chat environment.
func newSessionStore(mgr *profile.Manager, slug string) (*convo.Store, error) {
	return convo.NewStore(mgr.SessionsDir(slug))
}
