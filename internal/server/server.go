package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"docrag/internal/adapter/cache"
	"docrag/internal/domain"
	"docrag/internal/usecase"
)

const appName = "docrag"

// Options wires the use cases exposed by the server.
type Options struct {
	Retrieve *usecase.RetrieveUseCase
	Ingest   *usecase.IngestUseCase // nil disables POST /api/v1/ingest
	Cache    *cache.QueryCache      // nil disables result caching

	// Root bounds the paths accepted by the ingest endpoint.
	Root string

	DefaultTopK        int
	DefaultUseReranker bool
}

// Server exposes search, stats and ingestion over HTTP and the rag_data
// tool over MCP.
type Server struct {
	app      *fiber.App
	retrieve *usecase.RetrieveUseCase
	search   cache.Searcher
	cache    *cache.QueryCache
	ingest   *usecase.IngestUseCase
	root     string
	topK     int
	rerank   bool

	ingestMu sync.Mutex
}

func New(opts Options) *Server {
	s := &Server{
		retrieve: opts.Retrieve,
		search:   opts.Retrieve,
		cache:    opts.Cache,
		ingest:   opts.Ingest,
		root:     opts.Root,
		topK:     opts.DefaultTopK,
		rerank:   opts.DefaultUseReranker,
	}
	if s.topK <= 0 {
		s.topK = 5
	}
	if opts.Cache != nil {
		s.search = cache.NewCachedSearcher(opts.Retrieve, opts.Cache)
	}

	s.app = fiber.New(fiber.Config{
		AppName:      appName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	})
	s.app.Use(recover.New())

	s.app.Get("/api/v1/health", s.health)
	api := s.app.Group("/api/v1")
	api.Get("/stats", s.stats)
	api.Post("/search", s.searchHandler)
	api.Post("/ingest", s.ingestHandler)

	s.app.Post("/mcp", s.handleRPC)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errc <- s.app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		return s.app.ShutdownWithTimeout(10 * time.Second)
	}
}

func (s *Server) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "healthy",
		"app":      appName,
		"reranker": s.retrieve.HasReranker(),
	})
}

func (s *Server) stats(c fiber.Ctx) error {
	st, err := s.retrieve.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	resp := fiber.Map{
		"documents":               st.Documents,
		"chunks":                  st.Chunks,
		"avg_chunks_per_document": st.AvgChunksPerDocument(),
	}
	if s.cache != nil {
		hits, misses := s.cache.Stats()
		resp["cache"] = fiber.Map{"size": s.cache.Size(), "hits": hits, "misses": misses}
	}
	return c.JSON(resp)
}

// searchBody is the POST /api/v1/search payload. Omitted fields take the
// configured defaults.
type searchBody struct {
	Query       string `json:"query"`
	TopK        int    `json:"top_k"`
	UseReranker *bool  `json:"use_reranker"`
}

func (s *Server) searchHandler(c fiber.Ctx) error {
	var body searchBody
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	req := s.request(body.Query, body.TopK, body.UseReranker)
	results, err := s.search.Search(c.Context(), req)
	if err != nil {
		return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"query":   req.Query,
		"count":   len(results),
		"results": usecase.ToViews(results),
	})
}

type ingestBody struct {
	Path string `json:"path"`
}

func (s *Server) ingestHandler(c fiber.Ctx) error {
	if s.ingest == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "ingestion is disabled"})
	}

	var body ingestBody
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	path, err := s.resolve(body.Path)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if !s.ingestMu.TryLock() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "an ingestion is already running"})
	}
	defer s.ingestMu.Unlock()

	result, err := s.ingest.Ingest(c.Context(), path, nil)
	if s.cache != nil {
		s.cache.Invalidate()
	}
	if err != nil {
		resp := fiber.Map{"error": err.Error()}
		if result != nil {
			resp["result"] = result
		}
		return c.Status(statusFor(err)).JSON(resp)
	}
	return c.JSON(result)
}

// resolve maps a request path onto the server root and rejects anything
// outside of it.
func (s *Server) resolve(p string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	if p == "" {
		return root, nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside of %s", p, root)
	}
	return p, nil
}

func (s *Server) request(query string, topK int, useReranker *bool) domain.SearchRequest {
	req := domain.SearchRequest{
		Query:       query,
		TopK:        topK,
		UseReranker: s.rerank,
	}
	if req.TopK == 0 {
		req.TopK = s.topK
	}
	if useReranker != nil {
		req.UseReranker = *useReranker
	}
	return req
}

func statusFor(err error) int {
	var invalid *domain.InvalidRequestError
	var provider *domain.EmbeddingProviderError
	switch {
	case errors.As(err, &invalid):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrTimeout):
		return fiber.StatusGatewayTimeout
	case errors.As(err, &provider):
		return fiber.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}
