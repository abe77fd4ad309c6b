package usecase

import (
	"fmt"
	"strings"

	"docrag/internal/domain"
)

const (
	NoResultsMessage   = "No results found."
	EmptyCorpusMessage = "Database is empty. Please ingest some documents first using the Embeddings option."
)

var ruleLine = strings.Repeat("─", 80)

// FormatResult renders one result as a text block. rank is 1-based.
func FormatResult(rank int, c domain.ScoredCandidate) string {
	var b strings.Builder
	b.WriteString(ruleLine + "\n")
	if c.WasReranked {
		fmt.Fprintf(&b, "Result #%d | Reranked Score: %.4f\n", rank, c.Score)
		b.WriteString("Note: This result was re-ranked for relevance\n")
	} else {
		fmt.Fprintf(&b, "Result #%d | Similarity: %.4f\n", rank, c.Score)
	}
	fmt.Fprintf(&b, "File: %s\n", c.Chunk.FileName)
	fmt.Fprintf(&b, "Location: %s:%d-%d\n", c.Chunk.FilePath, c.Chunk.Chunk.StartOffset, c.Chunk.Chunk.EndOffset)
	fmt.Fprintf(&b, "Chunk #%d\n", c.Chunk.Chunk.Index)
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(c.Chunk.Chunk.Text) + "\n")
	b.WriteString(ruleLine + "\n")
	return b.String()
}

func FormatResults(results []domain.ScoredCandidate) string {
	if len(results) == 0 {
		return NoResultsMessage
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatResult(i+1, r))
	}
	return b.String()
}

// ResultView is the JSON shape of a result.
type ResultView struct {
	Rank        int     `json:"rank"`
	Score       float64 `json:"score"`
	WasReranked bool    `json:"was_reranked"`
	FileName    string  `json:"file_name"`
	FilePath    string  `json:"file_path"`
	ChunkIndex  int     `json:"chunk_index"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	Text        string  `json:"text"`
}

func ToViews(results []domain.ScoredCandidate) []ResultView {
	views := make([]ResultView, len(results))
	for i, r := range results {
		views[i] = ResultView{
			Rank:        i + 1,
			Score:       r.Score,
			WasReranked: r.WasReranked,
			FileName:    r.Chunk.FileName,
			FilePath:    r.Chunk.FilePath,
			ChunkIndex:  r.Chunk.Chunk.Index,
			StartOffset: r.Chunk.Chunk.StartOffset,
			EndOffset:   r.Chunk.Chunk.EndOffset,
			Text:        r.Chunk.Chunk.Text,
		}
	}
	return views
}
