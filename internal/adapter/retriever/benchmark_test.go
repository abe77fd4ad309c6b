package retriever

import (
	"context"
	"math/rand/v2"
	"testing"
)

func randomCorpus(n, dim int) ([]float32, []Candidate) {
	rng := rand.New(rand.NewPCG(1, 2))
	vec := func() []float32 {
		v := make([]float32, dim)
		for i := range v {
			v[i] = rng.Float32()*2 - 1
		}
		return v
	}

	corpus := make([]Candidate, n)
	for i := range corpus {
		corpus[i] = Candidate{ID: i, Vector: vec()}
	}
	return vec(), corpus
}

func BenchmarkCosineSimilarity768(b *testing.B) {
	q, corpus := randomCorpus(1, 768)
	for b.Loop() {
		CosineSimilarity(q, corpus[0].Vector)
	}
}

func benchmarkRank(b *testing.B, n, workers int) {
	q, corpus := randomCorpus(n, 768)
	engine := NewSimilarityEngine(workers)
	ctx := context.Background()
	for b.Loop() {
		if _, err := engine.Rank(ctx, q, corpus, 10); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRank10kSerial(b *testing.B)   { benchmarkRank(b, 10_000, 1) }
func BenchmarkRank10kParallel(b *testing.B) { benchmarkRank(b, 10_000, 0) }

func TestRankParallelMatchesSerial(t *testing.T) {
	q, corpus := randomCorpus(2_000, 64)
	ctx := context.Background()

	serial, err := NewSimilarityEngine(1).Rank(ctx, q, corpus, 50)
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := NewSimilarityEngine(8).Rank(ctx, q, corpus, 50)
	if err != nil {
		t.Fatal(err)
	}

	if len(serial.Matches) != len(parallel.Matches) {
		t.Fatalf("length mismatch: %d vs %d", len(serial.Matches), len(parallel.Matches))
	}
	for i := range serial.Matches {
		if serial.Matches[i] != parallel.Matches[i] {
			t.Fatalf("rank %d differs: %+v vs %+v", i, serial.Matches[i], parallel.Matches[i])
		}
	}
}
