package retriever

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"docrag/internal/domain"
)

// Candidate is one corpus vector. ID is the caller's handle for it, usually
// its position in the loaded corpus.
type Candidate struct {
	ID     int
	Vector []float32
}

type Match struct {
	ID         int
	Similarity float64
}

// Ranking is the result of a linear scan. Misaligned counts candidates whose
// dimension differed from the query's and were compared on the common
// prefix. Skipped counts candidates that could not be scored at all.
type Ranking struct {
	Matches    []Match
	Misaligned int
	Skipped    int
}

// SimilarityEngine ranks a corpus against a query by brute-force cosine
// similarity, scoring slices of the corpus in parallel.
type SimilarityEngine struct {
	workers int
}

func NewSimilarityEngine(workers int) *SimilarityEngine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &SimilarityEngine{workers: workers}
}

// CosineSimilarity returns dot(a,b)/(|a||b|) computed in float64. Vectors
// of different length are compared on their common prefix and a warning is
// returned alongside the score. Empty or zero-magnitude input scores 0.
func CosineSimilarity(a, b []float32) (float64, *domain.VectorAlignmentWarning) {
	var warn *domain.VectorAlignmentWarning
	n := len(a)
	if len(a) != len(b) {
		warn = &domain.VectorAlignmentWarning{QueryDim: len(a), CandidateDim: len(b)}
		n = min(len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := 0; i < n; i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, warn
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), warn
}

// Rank scores every candidate and returns them by descending similarity,
// ties kept in corpus order. topK <= 0 or larger than the corpus returns the
// full ranking. An empty query yields an empty ranking.
func (e *SimilarityEngine) Rank(ctx context.Context, query []float32, corpus []Candidate, topK int) (Ranking, error) {
	if len(query) == 0 || len(corpus) == 0 {
		return Ranking{}, nil
	}

	scores := make([]float64, len(corpus))
	misaligned := make([]bool, len(corpus))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	batch := max((len(corpus)+e.workers-1)/e.workers, 1)
	for start := 0; start < len(corpus); start += batch {
		end := min(start+batch, len(corpus))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				s, warn := CosineSimilarity(query, corpus[i].Vector)
				scores[i] = s
				misaligned[i] = warn != nil
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return Ranking{}, domain.FromContext(ctx)
		}
		return Ranking{}, err
	}

	var r Ranking
	var firstWarn *domain.VectorAlignmentWarning
	r.Matches = make([]Match, 0, len(corpus))
	for i, c := range corpus {
		if len(c.Vector) == 0 || math.IsNaN(scores[i]) || math.IsInf(scores[i], 0) {
			slog.Warn("skipping malformed candidate", "id", c.ID, "dimension", len(c.Vector))
			r.Skipped++
			continue
		}
		if misaligned[i] {
			r.Misaligned++
			if firstWarn == nil {
				firstWarn = &domain.VectorAlignmentWarning{QueryDim: len(query), CandidateDim: len(c.Vector)}
			}
		}
		r.Matches = append(r.Matches, Match{ID: c.ID, Similarity: scores[i]})
	}
	if firstWarn != nil {
		slog.Warn(firstWarn.Error(), "misaligned_candidates", r.Misaligned)
	}

	sort.SliceStable(r.Matches, func(i, j int) bool {
		return r.Matches[i].Similarity > r.Matches[j].Similarity
	})

	if topK > 0 && topK < len(r.Matches) {
		r.Matches = r.Matches[:topK]
	}
	return r, nil
}
