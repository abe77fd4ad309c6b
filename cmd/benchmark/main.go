package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docrag/config"
	"docrag/internal/cli"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

func main() {
	indexPath := flag.String("index", ".", "Path to indexed directory")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("n", 3, "Timed runs per mode")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -index ./tmp -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Corpus size and embedding model")
		fmt.Println("  2. Similarity-only results with quality ratings")
		fmt.Println("  3. Reranked results and how much the order changed (if a reranker is configured)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	comps, err := cli.OpenComponents(ctx, cfg, *indexPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	uc := comps.RetrieveUseCase()
	stats, err := uc.Stats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stats: %v\n", err)
		os.Exit(1)
	}
	if stats.Chunks == 0 {
		fmt.Fprintln(os.Stderr, usecase.EmptyCorpusMessage)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d (%d documents)\n", stats.Chunks, stats.Documents)
	fmt.Printf("Model: %s (%s)\n", comps.Embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Println()
	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	req := usecase.SearchRequest{Query: *query, TopK: *topK}
	baseline, took := timedSearch(ctx, uc, req, *runs)
	fmt.Printf("Similarity only (avg %s over %d runs):\n\n", took, *runs)
	printResults(baseline)
	printQuality(baseline)

	if !uc.HasReranker() {
		fmt.Println("\nReranker not configured (rerank.enabled=false), skipping reranked run.")
		return
	}

	req.UseReranker = true
	reranked, took := timedSearch(ctx, uc, req, *runs)
	fmt.Println()
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Reranked with %s (avg %s over %d runs):\n\n", comps.Reranker.ModelName(), took, *runs)
	printResults(reranked)

	if len(reranked) > 0 && !reranked[0].WasReranked {
		fmt.Println("  Reranker failed, results fell back to similarity order.")
		return
	}
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("ORDER CHANGE:\n")
	fmt.Printf("  Shared results:   %d of %d\n", overlap(baseline, reranked), len(reranked))
	fmt.Printf("  Top-1 unchanged:  %v\n", len(baseline) > 0 && len(reranked) > 0 &&
		baseline[0].Chunk.ChunkID == reranked[0].Chunk.ChunkID)
}

func timedSearch(ctx context.Context, uc *usecase.RetrieveUseCase, req usecase.SearchRequest, runs int) ([]domain.ScoredCandidate, time.Duration) {
	runs = max(runs, 1)
	var results []domain.ScoredCandidate
	start := time.Now()
	for range runs {
		var err error
		results, err = uc.Search(ctx, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
	}
	return results, time.Since(start) / time.Duration(runs)
}

func printResults(results []domain.ScoredCandidate) {
	for i, r := range results {
		preview := r.Chunk.Chunk.Text
		if runes := []rune(preview); len(runes) > 150 {
			preview = string(runes[:150]) + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		label := rating(r.Score)
		if r.WasReranked {
			label = "RERANK"
		}
		fmt.Printf("%d. [%s %.3f] %s:%d-%d\n", i+1, label, r.Score,
			filepath.Base(r.Chunk.FilePath), r.Chunk.Chunk.StartOffset, r.Chunk.Chunk.EndOffset)
		fmt.Printf("   %s\n\n", preview)
	}
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	}
	return "LOW"
}

func printQuality(results []domain.ScoredCandidate) {
	if len(results) == 0 {
		fmt.Println(usecase.NoResultsMessage)
		return
	}

	total := 0.0
	for _, r := range results {
		total += r.Score
	}
	avgScore := total / float64(len(results))

	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)

	switch {
	case avgScore > 0.5:
		fmt.Println("  Status: GOOD - similarity search working well")
	case avgScore > 0.3:
		fmt.Println("  Status: OK - results are somewhat related")
	default:
		fmt.Println("  Status: POOR - may need better embeddings or re-indexing")
	}
}

func overlap(a, b []domain.ScoredCandidate) int {
	seen := make(map[int64]bool, len(a))
	for _, r := range a {
		seen[r.Chunk.ChunkID] = true
	}
	n := 0
	for _, r := range b {
		if seen[r.Chunk.ChunkID] {
			n++
		}
	}
	return n
}
