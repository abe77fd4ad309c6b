package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"docrag/config"
	"docrag/internal/adapter/retriever"
)

func mockConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = 32
	return cfg
}

func TestOpenComponentsMissingIndex(t *testing.T) {
	_, err := OpenComponents(context.Background(), mockConfig(), t.TempDir(), true)
	if !errors.Is(err, errNoIndex) {
		t.Errorf("expected errNoIndex, got %v", err)
	}
}

func TestOpenComponentsCreatesBoltIndex(t *testing.T) {
	root := t.TempDir()
	cfg := mockConfig()

	comps, err := OpenComponents(context.Background(), cfg, root, false)
	if err != nil {
		t.Fatal(err)
	}
	defer comps.Close()

	if comps.Bolt == nil {
		t.Fatal("expected a bolt store")
	}
	if comps.Reranker != nil {
		t.Error("reranker should be nil when rerank is disabled")
	}
	if got := cfg.DBPath(root); got != filepath.Join(root, ".rag", "index.db") {
		t.Errorf("unexpected db path %s", got)
	}

	if _, err := comps.IngestUseCase(); err != nil {
		t.Fatal(err)
	}
	stats, err := comps.RetrieveUseCase().Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 0 || stats.Chunks != 0 {
		t.Errorf("expected empty corpus, got %+v", stats)
	}
}

func TestNewReranker(t *testing.T) {
	cfg := mockConfig()

	cfg.Rerank.Enabled = true
	cfg.Rerank.Provider = "simple"
	if _, ok := newReranker(cfg).(*retriever.TermOverlapReranker); !ok {
		t.Error("expected term-overlap reranker for provider simple")
	}

	cfg.Rerank.Provider = "http"
	if _, ok := newReranker(cfg).(*retriever.HTTPReranker); !ok {
		t.Error("expected HTTP reranker for provider http")
	}
}

func TestNewEmbedderOpenAIRequiresKey(t *testing.T) {
	cfg := mockConfig()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKeyEnv = "DOCRAG_TEST_MISSING_KEY"
	t.Setenv("DOCRAG_TEST_MISSING_KEY", "")

	if _, err := newEmbedder(cfg); err == nil {
		t.Error("expected error without an API key")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[string]string{
		"500ms": "<1s",
		"42s":   "42s",
		"3m7s":  "3m7s",
		"2h15m": "2h15m",
	}
	for in, want := range cases {
		d, err := time.ParseDuration(in)
		if err != nil {
			t.Fatal(err)
		}
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%s) = %q, want %q", in, got, want)
		}
	}
}
