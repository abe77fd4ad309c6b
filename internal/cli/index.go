package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"docrag/config"
	"docrag/internal/adapter/store"
	"docrag/internal/usecase"
)

var indexRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Chunk, embed and store documents",
	Long: `Ingest the documents under the given path. Every document is split into
overlapping character windows, each window is embedded and the vectors are
stored next to the chunk text. Re-ingesting a document replaces its chunks.

With the bolt driver the index lives in .rag/index.db under the root
directory. Changing the chunk or embedding settings makes existing vectors
incomparable, so the index is cleared and rebuilt.

Examples:
  rag index .                 # Ingest current directory
  rag index docs/guide.md     # Ingest a single file
  rag index . --rebuild       # Drop everything and ingest again`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "clear the index before ingesting")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	cfg := GetConfig()

	comps, err := OpenComponents(ctx, cfg, GetRootDir(), false)
	if err != nil {
		return err
	}
	defer comps.Close()

	if err := prepareStore(ctx, comps, cfg); err != nil {
		return err
	}

	ingestUC, err := comps.IngestUseCase()
	if err != nil {
		return err
	}

	fmt.Printf("Scanning %s...\n", path)
	fmt.Printf("Embedding with %s (%s)\n", cfg.Embedding.Provider, comps.Embedder.ModelName())

	start := time.Now()
	result, err := ingestUC.Ingest(ctx, path, newIndexProgress())
	if err != nil {
		if result != nil {
			printIngestResult(result, time.Since(start))
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	if comps.Bolt != nil {
		if err := comps.Bolt.Migrate(cfg); err != nil {
			return fmt.Errorf("failed to update schema info: %w", err)
		}
	}

	printIngestResult(result, time.Since(start))
	if comps.Bolt != nil {
		fmt.Printf("\nIndex stored at: %s\n", cfg.DBPath(GetRootDir()))
	}
	return nil
}

// prepareStore clears the store on --rebuild or when the stored vectors were
// produced under different settings, and brings the bolt schema up to date.
func prepareStore(ctx context.Context, comps *Components, cfg *config.Config) error {
	if comps.Bolt == nil {
		if indexRebuild {
			fmt.Println("Clearing existing index...")
			if pg, ok := comps.Store.(*store.PostgresStore); ok {
				return pg.Clear(ctx)
			}
		}
		return nil
	}

	migrationResult, err := comps.Bolt.CheckMigration(cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}

	switch {
	case indexRebuild || migrationResult.NeedsRebuild:
		if migrationResult.NeedsRebuild {
			fmt.Printf("Index rebuild required: %s\n", migrationResult.Reason)
		}
		fmt.Println("Clearing existing index...")
		if err := comps.Bolt.Clear(); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	case migrationResult.NeedsMigration:
		fmt.Printf("Running schema migration: %s\n", migrationResult.Reason)
		if err := comps.Bolt.Migrate(cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// newIndexProgress returns a progress callback that lazily creates the bar
// once the number of files is known.
func newIndexProgress() usecase.ProgressFunc {
	var (
		bar       *progressbar.ProgressBar
		startTime time.Time
	)

	return func(processed, total int, currentFile string) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(processed)

		elapsed := time.Since(startTime)
		rate := float64(processed) / elapsed.Seconds()
		if rate > 0 {
			eta := time.Duration(float64(total-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
		}
	}
}

func printIngestResult(result *usecase.IngestResult, took time.Duration) {
	fmt.Printf("\nIngestion complete in %s:\n", formatDuration(took))
	fmt.Printf("  Files found:    %d\n", result.FilesFound)
	fmt.Printf("  Files ingested: %d\n", result.FilesIngested)
	fmt.Printf("  Files failed:   %d\n", result.FilesFailed)
	fmt.Printf("  Chunks stored:  %d\n", result.ChunksStored)
	if result.ChunksFailed > 0 {
		fmt.Printf("  Chunks failed:  %d\n", result.ChunksFailed)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
