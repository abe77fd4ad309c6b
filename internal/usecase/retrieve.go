package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"docrag/internal/adapter/codec"
	"docrag/internal/adapter/retriever"
	"docrag/internal/domain"
	"docrag/internal/port"
)

type SearchRequest = domain.SearchRequest

// RetrieveUseCase answers similarity queries against the whole stored
// corpus, optionally refining the order with a reranker.
type RetrieveUseCase struct {
	embedder port.Embedder
	store    port.CorpusStore
	engine   *retriever.SimilarityEngine
	reranker port.Reranker
}

// NewRetrieveUseCase creates a new retrieve use case. reranker may be nil.
func NewRetrieveUseCase(
	embedder port.Embedder,
	store port.CorpusStore,
	engine *retriever.SimilarityEngine,
	reranker port.Reranker,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder: embedder,
		store:    store,
		engine:   engine,
		reranker: reranker,
	}
}

func (u *RetrieveUseCase) HasReranker() bool {
	return u.reranker != nil
}

// Search runs embed, load, score and (optionally) rerank. An empty corpus
// yields nil results and no error. A rerank failure of any kind falls back to
// the similarity order truncated to TopK.
func (u *RetrieveUseCase) Search(ctx context.Context, req SearchRequest) ([]domain.ScoredCandidate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	log := slog.With("query_id", uuid.NewString())

	log.Debug("embedding query", "top_k", req.TopK, "rerank", req.UseReranker)
	queryVec, err := u.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) == 0 {
		return nil, nil
	}

	log.Debug("loading corpus")
	stored, err := u.store.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	if len(stored) == 0 {
		log.Info("corpus is empty")
		return nil, nil
	}

	rerank := req.UseReranker && u.reranker != nil
	if req.UseReranker && u.reranker == nil {
		log.Info("reranking requested but no reranker is configured")
	}

	pool := req.TopK
	if rerank {
		pool = 2 * req.TopK
	}

	candidates := make([]retriever.Candidate, len(stored))
	for i, sc := range stored {
		candidates[i] = retriever.Candidate{ID: i, Vector: codec.Decode(sc.Vector)}
	}

	log.Debug("scoring", "corpus_size", len(candidates), "pool", pool)
	ranking, err := u.engine.Rank(ctx, queryVec, candidates, pool)
	if err != nil {
		return nil, fmt.Errorf("score corpus: %w", err)
	}

	baseline := make([]domain.ScoredCandidate, len(ranking.Matches))
	for i, m := range ranking.Matches {
		baseline[i] = domain.ScoredCandidate{
			Chunk:  stored[m.ID],
			Vector: candidates[m.ID].Vector,
			Score:  m.Similarity,
		}
	}

	if !rerank {
		return truncate(baseline, req.TopK), nil
	}

	log.Debug("reranking", "candidates", len(baseline), "model", u.reranker.ModelName())
	results, err := u.rerank(ctx, req, baseline)
	if err != nil {
		log.Warn("rerank failed, falling back to similarity order", "error", err)
		return truncate(baseline, req.TopK), nil
	}
	return results, nil
}

func (u *RetrieveUseCase) rerank(ctx context.Context, req SearchRequest, pool []domain.ScoredCandidate) ([]domain.ScoredCandidate, error) {
	if len(pool) == 0 {
		return pool, nil
	}

	texts := make([]string, len(pool))
	for i, c := range pool {
		texts[i] = c.Chunk.Chunk.Text
	}

	outcomes, err := u.reranker.Rerank(ctx, req.Query, texts, req.TopK)
	if err != nil {
		return nil, err
	}

	if len(outcomes) == 0 {
		return nil, &domain.RerankProviderError{Err: fmt.Errorf("no results for %d submitted documents", len(pool))}
	}

	seen := make(map[int]bool, len(outcomes))
	results := make([]domain.ScoredCandidate, 0, min(req.TopK, len(outcomes)))
	for _, o := range outcomes {
		if len(results) == req.TopK {
			break
		}
		if o.OriginalIndex < 0 || o.OriginalIndex >= len(pool) {
			return nil, &domain.RerankProviderError{
				Err: fmt.Errorf("result index %d outside submitted range [0, %d)", o.OriginalIndex, len(pool)),
			}
		}
		if seen[o.OriginalIndex] {
			return nil, &domain.RerankProviderError{Err: fmt.Errorf("result index %d returned twice", o.OriginalIndex)}
		}
		seen[o.OriginalIndex] = true
		c := pool[o.OriginalIndex]
		c.Score = o.RelevanceScore
		c.WasReranked = true
		results = append(results, c)
	}
	return results, nil
}

func truncate(results []domain.ScoredCandidate, topK int) []domain.ScoredCandidate {
	if len(results) > topK {
		return results[:topK]
	}
	return results
}

// Stats reports corpus size.
func (u *RetrieveUseCase) Stats(ctx context.Context) (domain.Stats, error) {
	docs, err := u.store.DocumentCount(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	chunks, err := u.store.ChunkCount(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.Stats{Documents: docs, Chunks: chunks}, nil
}
