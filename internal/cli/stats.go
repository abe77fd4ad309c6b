package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	comps, err := OpenComponents(ctx, cfg, GetRootDir(), true)
	if err != nil {
		return err
	}
	defer comps.Close()

	stats, err := comps.RetrieveUseCase().Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	if statsJSON {
		output, _ := json.MarshalIndent(map[string]any{
			"documents":               stats.Documents,
			"chunks":                  stats.Chunks,
			"avg_chunks_per_document": stats.AvgChunksPerDocument(),
			"embedding_model":         comps.Embedder.ModelName(),
			"store_driver":            cfg.Store.Driver,
		}, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	body := fmt.Sprintf("Documents:       %d\nChunks:          %d\nAvg chunks/doc:  %.1f\nEmbedding model: %s\nStore:           %s",
		stats.Documents, stats.Chunks, stats.AvgChunksPerDocument(), comps.Embedder.ModelName(), cfg.Store.Driver)
	fmt.Println(headerStyle.Render("Corpus"))
	fmt.Println(statBoxStyle.Render(body))
	return nil
}
