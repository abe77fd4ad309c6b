package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"docrag/config"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/retriever"
	"docrag/internal/adapter/store"
	"docrag/internal/adapter/transport"
	"docrag/internal/port"
	"docrag/internal/usecase"
)

// errNoIndex is returned by read-only commands when nothing was ingested yet.
var errNoIndex = errors.New("no index found. Run 'rag index' first")

// Components is the wired pipeline shared by the subcommands.
type Components struct {
	Store    port.CorpusStore
	Bolt     *store.BoltStore // nil unless store.driver is bolt
	Embedder *embedding.Client
	Reranker port.Reranker // nil when reranking is disabled
	Engine   *retriever.SimilarityEngine

	cfg *config.Config
}

// OpenComponents builds every dependency described by cfg. When mustExist is
// set, a missing bolt file is reported as errNoIndex instead of created.
func OpenComponents(ctx context.Context, cfg *config.Config, root string, mustExist bool) (*Components, error) {
	st, bolt, err := openStore(ctx, cfg, root, mustExist)
	if err != nil {
		return nil, err
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Components{
		Store:    st,
		Bolt:     bolt,
		Embedder: emb,
		Reranker: newReranker(cfg),
		Engine:   retriever.NewSimilarityEngine(cfg.Retrieve.ScoreWorkers),
		cfg:      cfg,
	}, nil
}

func (c *Components) Close() error {
	return c.Store.Close()
}

func (c *Components) RetrieveUseCase() *usecase.RetrieveUseCase {
	return usecase.NewRetrieveUseCase(c.Embedder, c.Store, c.Engine, c.Reranker)
}

func (c *Components) IngestUseCase() (*usecase.IngestUseCase, error) {
	chk, err := chunker.NewWindowChunker(c.cfg.Index.ChunkSize, c.cfg.Index.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	walker := fs.NewWalker(c.cfg.Index.Includes, c.cfg.Index.Excludes)
	return usecase.NewIngestUseCase(c.Store, walker, chk, c.Embedder, c.cfg.Index.Workers), nil
}

func openStore(ctx context.Context, cfg *config.Config, root string, mustExist bool) (port.CorpusStore, *store.BoltStore, error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return st, nil, nil
	default:
		dbPath := cfg.DBPath(root)
		if mustExist {
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				return nil, nil, errNoIndex
			}
		} else if cfg.Store.Path == "" {
			if err := config.EnsureRAGDir(root); err != nil {
				return nil, nil, fmt.Errorf("failed to create .rag directory: %w", err)
			}
		}
		st, err := store.NewBoltStore(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open index store: %w", err)
		}
		return st, st, nil
	}
}

func newEmbedder(cfg *config.Config) (*embedding.Client, error) {
	e := cfg.Embedding
	httpClient := transport.NewClient(e.ConnectTimeout, e.RequestTimeout)

	var provider embedding.Provider
	switch e.Provider {
	case "openai":
		p, err := embedding.NewOpenAIProvider(e.APIKeyEnv, e.Model, e.BaseURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		provider = p
	case "ollama":
		provider = embedding.NewOllamaProvider(e.BaseURL, e.Model, os.Getenv("RAG_EMBEDDING_TOKEN"), httpClient)
	case "mock":
		provider = embedding.NewMockProvider(e.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}

	return embedding.NewClient(provider, e.MaxAttempts, e.BaseDelay), nil
}

func newReranker(cfg *config.Config) port.Reranker {
	r := cfg.Rerank
	if !r.Enabled {
		return nil
	}
	if r.Provider == "simple" {
		return retriever.NewTermOverlapReranker()
	}
	return retriever.NewHTTPReranker(r.BaseURL, r.Model,
		transport.NewClient(cfg.Embedding.ConnectTimeout, r.Timeout))
}
