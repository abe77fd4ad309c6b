package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"docrag/internal/adapter/cache"
	"docrag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search over HTTP and MCP",
	Long: `Start an HTTP server exposing the corpus.

Endpoints:
  GET  /api/v1/health
  GET  /api/v1/stats
  POST /api/v1/search   {"query": "...", "top_k": 5, "use_reranker": false}
  POST /api/v1/ingest   {"path": "docs"}
  POST /mcp             JSON-RPC 2.0, tool "rag_data"`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	comps, err := OpenComponents(ctx, cfg, GetRootDir(), false)
	if err != nil {
		return err
	}
	defer comps.Close()

	if comps.Bolt != nil {
		check, err := comps.Bolt.CheckMigration(cfg)
		if err != nil {
			return fmt.Errorf("failed to check migration: %w", err)
		}
		if check.NeedsRebuild {
			return fmt.Errorf("index must be rebuilt (%s). Run 'rag index --rebuild' first", check.Reason)
		}
		if check.NeedsMigration {
			if err := comps.Bolt.Migrate(cfg); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
	}

	ingestUC, err := comps.IngestUseCase()
	if err != nil {
		return err
	}

	var qc *cache.QueryCache
	if cfg.Server.CacheSize > 0 {
		qc = cache.NewQueryCache(cfg.Server.CacheSize, cfg.Server.CacheTTL)
	}

	srv := server.New(server.Options{
		Retrieve:           comps.RetrieveUseCase(),
		Ingest:             ingestUC,
		Cache:              qc,
		Root:               GetRootDir(),
		DefaultTopK:        cfg.Retrieve.TopK,
		DefaultUseReranker: cfg.Retrieve.UseReranker,
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	return srv.Run(ctx, addr)
}
