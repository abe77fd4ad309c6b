package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/usecase"
)

var (
	queryText   string
	queryTopK   int
	queryJSON   bool
	queryRerank bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search stored chunks",
	Long: `Embed the query, rank every stored chunk by cosine similarity and print
the best matches. With --rerank the top 2*k candidates are reordered by the
configured reranker; if reranking fails the similarity order is kept.

Examples:
  rag query -q "how are retries scheduled"
  rag query -q "schema migration" -k 10 --rerank
  rag query -q "config file" --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().BoolVar(&queryRerank, "rerank", false, "rerank results (default from config)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	comps, err := OpenComponents(ctx, cfg, GetRootDir(), true)
	if err != nil {
		return err
	}
	defer comps.Close()

	retrieveUC := comps.RetrieveUseCase()

	req := usecase.SearchRequest{
		Query:       queryText,
		TopK:        cfg.Retrieve.TopK,
		UseReranker: cfg.Retrieve.UseReranker || queryRerank,
	}
	if queryTopK > 0 {
		req.TopK = queryTopK
	}

	stats, err := retrieveUC.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	if stats.Chunks == 0 {
		if queryJSON {
			fmt.Println("[]")
			return nil
		}
		fmt.Println(usecase.EmptyCorpusMessage)
		return nil
	}

	results, err := retrieveUC.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(usecase.ToViews(results), "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Found %d results for: %s", len(results), queryText)))
	fmt.Println(summaryStyle.Render(fmt.Sprintf("%d chunks from %d documents searched", stats.Chunks, stats.Documents)))
	if req.UseReranker && !retrieveUC.HasReranker() {
		fmt.Println(noticeStyle.Render("Reranking requested but rerank.enabled is false; showing similarity order"))
	}
	fmt.Println()
	fmt.Println(usecase.FormatResults(results))

	return nil
}
