package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.ChunkSize != 512 {
		t.Errorf("expected ChunkSize=512, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Index.ChunkOverlap != 50 {
		t.Errorf("expected ChunkOverlap=50, got %d", cfg.Index.ChunkOverlap)
	}
	if cfg.Embedding.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.Embedding.MaxAttempts)
	}
	if cfg.Embedding.BaseDelay != time.Second {
		t.Errorf("expected BaseDelay=1s, got %v", cfg.Embedding.BaseDelay)
	}
	if cfg.Embedding.RequestTimeout != 60*time.Second || cfg.Embedding.ConnectTimeout != 30*time.Second {
		t.Errorf("unexpected timeouts %v / %v", cfg.Embedding.RequestTimeout, cfg.Embedding.ConnectTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "rag.yaml")

	content := `
index:
  chunk_size: 256
  chunk_overlap: 32
embedding:
  provider: mock
  base_delay: 250ms
retrieve:
  top_k: 10
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.ChunkSize != 256 {
		t.Errorf("expected ChunkSize=256, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("expected provider mock, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.BaseDelay != 250*time.Millisecond {
		t.Errorf("expected BaseDelay=250ms, got %v", cfg.Embedding.BaseDelay)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	// Untouched sections keep their defaults.
	if cfg.Embedding.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", cfg.Embedding.MaxAttempts)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.yaml")
	if err := os.WriteFile(path, []byte("index: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureRAGDir(tmpDir); err != nil {
		t.Fatal(err)
	}

	content := `
server:
  addr: ":9090"
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".rag", "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected Addr=:9090, got %s", cfg.Server.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RAG_EMBEDDING_PROVIDER", "openai")
	t.Setenv("RAG_EMBEDDING_MAX_ATTEMPTS", "5")
	t.Setenv("RAG_EMBEDDING_BASE_DELAY", "2s")
	t.Setenv("RAG_RERANK_ENABLED", "true")
	t.Setenv("RAG_TOP_K", "not-a-number")

	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Embedding.Provider != "openai" {
		t.Errorf("expected provider openai, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.MaxAttempts != 5 {
		t.Errorf("expected MaxAttempts=5, got %d", cfg.Embedding.MaxAttempts)
	}
	if cfg.Embedding.BaseDelay != 2*time.Second {
		t.Errorf("expected BaseDelay=2s, got %v", cfg.Embedding.BaseDelay)
	}
	if !cfg.Rerank.Enabled {
		t.Error("expected reranking enabled")
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected invalid RAG_TOP_K to be ignored, got %d", cfg.Retrieve.TopK)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero chunk size", func(c *Config) { c.Index.ChunkSize = 0 }, "chunk_size"},
		{"overlap too large", func(c *Config) { c.Index.ChunkOverlap = c.Index.ChunkSize }, "chunk_overlap"},
		{"no attempts", func(c *Config) { c.Embedding.MaxAttempts = 0 }, "max_attempts"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "voyage" }, "embedding.provider"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "store.dsn"},
		{"unknown reranker", func(c *Config) { c.Rerank.Enabled = true; c.Rerank.Provider = "x" }, "rerank.provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.yaml")
	cfg := DefaultConfig()
	cfg.Embedding.BaseDelay = 1500 * time.Millisecond

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Embedding.BaseDelay != cfg.Embedding.BaseDelay {
		t.Errorf("expected %v after reload, got %v", cfg.Embedding.BaseDelay, loaded.Embedding.BaseDelay)
	}
}

func TestIndexDBPath(t *testing.T) {
	path := IndexDBPath("/home/user/project")
	expected := filepath.Join("/home/user/project", ".rag", "index.db")
	if path != expected {
		t.Errorf("expected %s, got %s", expected, path)
	}

	cfg := DefaultConfig()
	if cfg.DBPath("/root") != IndexDBPath("/root") {
		t.Error("expected default DBPath to match IndexDBPath")
	}
	cfg.Store.Path = "data/corpus.db"
	if cfg.DBPath("/root") != filepath.Join("/root", "data", "corpus.db") {
		t.Errorf("unexpected relative DBPath %s", cfg.DBPath("/root"))
	}
}
