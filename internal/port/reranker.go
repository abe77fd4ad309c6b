package port

import (
	"context"

	"docrag/internal/domain"
)

// Reranker scores query-document pairs for relevance.
type Reranker interface {
	// Rerank returns outcomes in the new relevance order. OriginalIndex refers
	// to the position in documents. topK <= 0 means no limit.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankOutcome, error)

	// ModelName returns the name of the reranking model.
	ModelName() string
}
