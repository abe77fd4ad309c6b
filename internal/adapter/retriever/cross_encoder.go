package retriever

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"docrag/internal/adapter/analyzer"
	"docrag/internal/adapter/transport"
	"docrag/internal/domain"
)

// HTTPReranker calls a cross-encoder service exposing POST /rerank.
type HTTPReranker struct {
	baseURL string
	model   string
	client  *http.Client
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Query            string         `json:"query"`
	Results          []rerankResult `json:"results"`
	ProcessingTimeMs float64        `json:"processing_time_ms"`
	Device           string         `json:"device"`
}

type rerankResult struct {
	Index    int     `json:"index"`
	Document string  `json:"document"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

func NewHTTPReranker(baseURL, model string, client *http.Client) *HTTPReranker {
	if model == "" {
		model = "cross-encoder"
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPReranker{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
	}
}

// Rerank submits documents in a single round trip and returns outcomes in
// the service's relevance order. topK <= 0 asks for every document.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankOutcome, error) {
	if err := validateRerank(query, documents); err != nil {
		return nil, err
	}

	var resp rerankResponse
	err := transport.PostJSON(ctx, r.client, r.baseURL+"/rerank", "",
		rerankRequest{Query: query, Documents: documents, TopK: max(topK, 0)}, &resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.RerankProviderError{Err: domain.FromContext(ctx)}
		}
		return nil, &domain.RerankProviderError{Err: err}
	}

	outcomes := make([]domain.RerankOutcome, len(resp.Results))
	for i, res := range resp.Results {
		outcomes[i] = domain.RerankOutcome{
			OriginalIndex:  res.Index,
			RelevanceScore: res.Score,
		}
	}
	return outcomes, nil
}

func (r *HTTPReranker) ModelName() string {
	return r.model
}

func validateRerank(query string, documents []string) error {
	if strings.TrimSpace(query) == "" {
		return &domain.InvalidRequestError{Reason: "rerank query must not be blank"}
	}
	if len(documents) == 0 {
		return &domain.InvalidRequestError{Reason: "no documents to rerank"}
	}
	return nil
}

// TermOverlapReranker scores documents by the fraction of distinct query
// terms they contain. It needs no service and is used when none is
// configured.
type TermOverlapReranker struct {
	tokenizer *analyzer.Tokenizer
}

func NewTermOverlapReranker() *TermOverlapReranker {
	return &TermOverlapReranker{tokenizer: analyzer.NewTokenizer(false)}
}

func (r *TermOverlapReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankOutcome, error) {
	if err := validateRerank(query, documents); err != nil {
		return nil, err
	}

	queryTerms := r.tokenizer.Terms(query)
	results := make([]domain.RerankOutcome, len(documents))
	for i, doc := range documents {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, &domain.RerankProviderError{Err: domain.FromContext(ctx)}
			}
		}
		results[i] = domain.RerankOutcome{
			OriginalIndex:  i,
			RelevanceScore: termOverlap(queryTerms, r.tokenizer.Terms(doc)),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})

	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (r *TermOverlapReranker) ModelName() string {
	return "term-overlap"
}

func termOverlap(queryTerms, docTerms map[string]int) float64 {
	if len(queryTerms) == 0 || len(docTerms) == 0 {
		return 0
	}

	matches := 0
	for term := range queryTerms {
		if _, exists := docTerms[term]; exists {
			matches++
		}
	}

	return float64(matches) / float64(len(queryTerms))
}
