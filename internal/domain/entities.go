package domain

import (
	"fmt"
	"strings"
	"time"
)

// Document is a source file registered in the corpus.
type Document struct {
	ID        int64
	Path      string
	Name      string
	ModTime   time.Time
	CreatedAt time.Time
}

// Chunk is a window of a document's text. Offsets are rune positions in the
// source text, StartOffset inclusive and EndOffset exclusive.
type Chunk struct {
	Index       int
	Text        string
	StartOffset int
	EndOffset   int
}

// StoredChunk is a persisted chunk joined with its document and raw vector.
type StoredChunk struct {
	ChunkID    int64
	DocumentID int64
	FileName   string
	FilePath   string
	Chunk      Chunk
	Vector     []byte
}

// ScoredCandidate is a query result. Score holds the cosine similarity, or
// the reranker's relevance score when WasReranked is set.
type ScoredCandidate struct {
	Chunk       StoredChunk
	Vector      []float32
	Score       float64
	WasReranked bool
}

// RerankOutcome ties a reranker score to the position of the document in the
// list that was submitted for reranking.
type RerankOutcome struct {
	OriginalIndex  int
	RelevanceScore float64
}

type Stats struct {
	Documents int
	Chunks    int
}

func (s Stats) AvgChunksPerDocument() float64 {
	if s.Documents == 0 {
		return 0
	}
	return float64(s.Chunks) / float64(s.Documents)
}

// SearchRequest is a similarity query. TopK must be positive.
type SearchRequest struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k"`
	UseReranker bool   `json:"use_reranker"`
}

func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return &InvalidRequestError{Reason: "query must not be blank"}
	}
	if r.TopK <= 0 {
		return &InvalidRequestError{Reason: fmt.Sprintf("top_k must be positive, got %d", r.TopK)}
	}
	return nil
}
