package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the docrag tool.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StoreConfig selects where documents, chunks and vectors are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "bolt" or "postgres"
	Path   string `yaml:"path"`   // bolt file; empty means .rag/index.db under the root
	DSN    string `yaml:"dsn"`
}

// IndexConfig holds file discovery and chunking configuration.
type IndexConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Workers      int      `yaml:"workers"`
}

// EmbeddingConfig holds embedding provider and retry configuration.
type EmbeddingConfig struct {
	Provider       string        `yaml:"provider"` // "ollama", "openai", "mock"
	BaseURL        string        `yaml:"base_url"` // empty uses the provider's default endpoint
	Model          string        `yaml:"model"`
	APIKeyEnv      string        `yaml:"api_key_env"`
	Dimension      int           `yaml:"dimension"` // mock provider only
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// RerankConfig holds reranker configuration.
type RerankConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Provider string        `yaml:"provider"` // "http" or "simple"
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RetrieveConfig holds query defaults.
type RetrieveConfig struct {
	TopK         int  `yaml:"top_k"`
	UseReranker  bool `yaml:"use_reranker"`
	ScoreWorkers int  `yaml:"score_workers"` // 0 = GOMAXPROCS
}

// ServerConfig holds HTTP/MCP server configuration.
type ServerConfig struct {
	Addr      string        `yaml:"addr"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "bolt",
		},
		Index: IndexConfig{
			Includes:     []string{"**/*.md", "**/*.txt"},
			Excludes:     []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/.rag/**"},
			ChunkSize:    512,
			ChunkOverlap: 50,
			Workers:      4,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			Model:          "nomic-embed-text",
			APIKeyEnv:      "OPENAI_API_KEY",
			Dimension:      64,
			MaxAttempts:    3,
			BaseDelay:      time.Second,
			ConnectTimeout: 30 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Rerank: RerankConfig{
			Enabled:  false,
			Provider: "http",
			BaseURL:  "http://localhost:8000",
			Timeout:  30 * time.Second,
		},
		Retrieve: RetrieveConfig{
			TopK: 5,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file and applies RAG_* environment
// overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for rag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try rag.yaml in the directory
	path := filepath.Join(dir, "rag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .rag/config.yaml
	path = filepath.Join(dir, ".rag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings that would make indexing or querying fail
// later in a less obvious way.
func (c *Config) Validate() error {
	var errs []error

	if c.Index.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize))
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		errs = append(errs, fmt.Errorf("index.chunk_overlap must be in [0, chunk_size), got %d", c.Index.ChunkOverlap))
	}
	if c.Index.Workers <= 0 {
		errs = append(errs, fmt.Errorf("index.workers must be positive, got %d", c.Index.Workers))
	}
	if c.Embedding.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("embedding.max_attempts must be positive, got %d", c.Embedding.MaxAttempts))
	}
	if c.Embedding.BaseDelay < 0 {
		errs = append(errs, fmt.Errorf("embedding.base_delay must not be negative"))
	}
	switch c.Embedding.Provider {
	case "ollama", "openai", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	switch c.Store.Driver {
	case "bolt":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if c.Rerank.Enabled {
		switch c.Rerank.Provider {
		case "http", "simple":
		default:
			errs = append(errs, fmt.Errorf("unknown rerank.provider %q", c.Rerank.Provider))
		}
	}
	if c.Retrieve.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK))
	}

	return errors.Join(errs...)
}

func (c *Config) applyEnv() {
	c.Store.Driver = envOrDefault("RAG_STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = envOrDefault("RAG_STORE_DSN", c.Store.DSN)
	c.Embedding.Provider = envOrDefault("RAG_EMBEDDING_PROVIDER", c.Embedding.Provider)
	c.Embedding.BaseURL = envOrDefault("RAG_EMBEDDING_URL", c.Embedding.BaseURL)
	c.Embedding.Model = envOrDefault("RAG_EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.MaxAttempts = envOrDefaultInt("RAG_EMBEDDING_MAX_ATTEMPTS", c.Embedding.MaxAttempts)
	c.Embedding.BaseDelay = envOrDefaultDuration("RAG_EMBEDDING_BASE_DELAY", c.Embedding.BaseDelay)
	c.Rerank.Enabled = envOrDefaultBool("RAG_RERANK_ENABLED", c.Rerank.Enabled)
	c.Rerank.BaseURL = envOrDefault("RAG_RERANK_URL", c.Rerank.BaseURL)
	c.Retrieve.TopK = envOrDefaultInt("RAG_TOP_K", c.Retrieve.TopK)
	c.Server.Addr = envOrDefault("RAG_SERVER_ADDR", c.Server.Addr)
	c.Logging.Level = strings.ToLower(envOrDefault("RAG_LOG_LEVEL", c.Logging.Level))
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".rag", "index.db")
}

// DBPath resolves the bolt file for root, honouring store.path.
func (c *Config) DBPath(root string) string {
	if c.Store.Path == "" {
		return IndexDBPath(root)
	}
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(root, c.Store.Path)
}

// EnsureRAGDir ensures the .rag directory exists.
func EnsureRAGDir(dir string) error {
	ragDir := filepath.Join(dir, ".rag")
	return os.MkdirAll(ragDir, 0755)
}
