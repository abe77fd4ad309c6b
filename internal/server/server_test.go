package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docrag/internal/adapter/cache"
	"docrag/internal/adapter/chunker"
	"docrag/internal/adapter/embedding"
	"docrag/internal/adapter/fs"
	"docrag/internal/adapter/memstore"
	"docrag/internal/adapter/retriever"
	"docrag/internal/usecase"
)

type testEnv struct {
	srv   *Server
	root  string
	cache *cache.QueryCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"go.md":    "goroutines and channels make concurrency simple",
		"bread.md": "bake the sourdough bread for forty minutes",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	st := memstore.NewMemoryStore()
	emb := embedding.NewClient(embedding.NewMockProvider(256), 1, 0)
	chk, err := chunker.NewWindowChunker(512, 50)
	if err != nil {
		t.Fatal(err)
	}
	qc := cache.NewQueryCache(16, time.Minute)

	srv := New(Options{
		Retrieve:    usecase.NewRetrieveUseCase(emb, st, retriever.NewSimilarityEngine(2), nil),
		Ingest:      usecase.NewIngestUseCase(st, fs.NewWalker([]string{"**/*.md"}, nil), chk, emb, 2),
		Cache:       qc,
		Root:        root,
		DefaultTopK: 3,
	})
	return &testEnv{srv: srv, root: root, cache: qc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.srv.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("response is not JSON: %q", raw)
		}
	}
	return resp.StatusCode, out
}

func (e *testEnv) ingestAll(t *testing.T) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/ingest", map[string]string{})
	if status != http.StatusOK {
		t.Fatalf("ingest returned %d: %v", status, body)
	}
}

func rpc(id int, method string, params any) map[string]any {
	return map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params}
}

func resultText(t *testing.T, body map[string]any) string {
	t.Helper()
	result, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("no result in %v", body)
	}
	content := result["content"].([]any)
	return content[0].(map[string]any)["text"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/v1/health", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "healthy" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestIngestThenSearch(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/ingest", map[string]string{})
	if status != http.StatusOK {
		t.Fatalf("ingest returned %d: %v", status, body)
	}
	if body["files_ingested"] != float64(2) || body["chunks_stored"] != float64(2) {
		t.Errorf("unexpected ingest result: %v", body)
	}

	status, body = env.do(t, http.MethodGet, "/api/v1/stats", nil)
	if status != http.StatusOK {
		t.Fatalf("stats returned %d", status)
	}
	if body["documents"] != float64(2) || body["chunks"] != float64(2) {
		t.Errorf("unexpected stats: %v", body)
	}

	status, body = env.do(t, http.MethodPost, "/api/v1/search", map[string]any{
		"query": "goroutines and channels",
		"top_k": 1,
	})
	if status != http.StatusOK {
		t.Fatalf("search returned %d: %v", status, body)
	}
	results := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	top := results[0].(map[string]any)
	if top["file_name"] != "go.md" {
		t.Errorf("expected go.md first, got %v", top["file_name"])
	}
	if top["was_reranked"] != false {
		t.Errorf("result should not be reranked: %v", top)
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	env := newTestEnv(t)
	env.ingestAll(t)

	_, body := env.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "bread"})
	if body["count"] != float64(2) {
		t.Errorf("expected both chunks with default top_k 3, got %v", body["count"])
	}
}

func TestSearchInvalidRequest(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "   "})
	if status != http.StatusBadRequest {
		t.Errorf("blank query: expected 400, got %d", status)
	}

	status, _ = env.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "x", "top_k": -1})
	if status != http.StatusBadRequest {
		t.Errorf("negative top_k: expected 400, got %d", status)
	}
}

func TestIngestRejectsPathOutsideRoot(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/ingest", map[string]string{"path": "../elsewhere"})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", status)
	}
}

func TestIngestInvalidatesCache(t *testing.T) {
	env := newTestEnv(t)
	env.ingestAll(t)

	env.do(t, http.MethodPost, "/api/v1/search", map[string]any{"query": "bread"})
	if env.cache.Size() != 1 {
		t.Fatalf("expected 1 cached query, got %d", env.cache.Size())
	}

	env.ingestAll(t)
	if env.cache.Size() != 0 {
		t.Errorf("expected cache to be empty after ingestion, got %d", env.cache.Size())
	}
}

func TestMCPInitializeAndList(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/mcp", rpc(1, "initialize", map[string]any{}))
	result := body["result"].(map[string]any)
	if result["protocolVersion"] != mcpProtocolVersion {
		t.Errorf("unexpected initialize result: %v", result)
	}

	_, body = env.do(t, http.MethodPost, "/mcp", rpc(2, "tools/list", nil))
	tools := body["result"].(map[string]any)["tools"].([]any)
	if len(tools) != 1 || tools[0].(map[string]any)["name"] != ragToolName {
		t.Errorf("unexpected tools: %v", tools)
	}
	if body["id"] != float64(2) {
		t.Errorf("response id not echoed: %v", body["id"])
	}
}

func TestMCPEmptyCorpus(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/mcp", rpc(1, "tools/call", map[string]any{
		"name":      ragToolName,
		"arguments": map[string]any{"query": "anything"},
	}))
	if text := resultText(t, body); text != usecase.EmptyCorpusMessage {
		t.Errorf("expected empty corpus message, got %q", text)
	}
}

func TestMCPSearch(t *testing.T) {
	env := newTestEnv(t)
	env.ingestAll(t)

	_, body := env.do(t, http.MethodPost, "/mcp", rpc(7, "tools/call", map[string]any{
		"name":      ragToolName,
		"arguments": map[string]any{"query": "sourdough bread", "top_k": 1},
	}))
	text := resultText(t, body)
	for _, want := range []string{"Result #1 | Similarity:", "File: bread.md", "Chunk #0", "bake the sourdough bread"} {
		if !strings.Contains(text, want) {
			t.Errorf("tool output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Result #2") {
		t.Errorf("expected a single result:\n%s", text)
	}
}

func TestMCPInvalidArguments(t *testing.T) {
	env := newTestEnv(t)

	cases := []map[string]any{
		{"query": 42},
		{"query": ""},
		{"query": "x", "top_k": -3},
	}
	for _, args := range cases {
		_, body := env.do(t, http.MethodPost, "/mcp", rpc(1, "tools/call", map[string]any{
			"name":      ragToolName,
			"arguments": args,
		}))
		rpcErr, ok := body["error"].(map[string]any)
		if !ok {
			t.Errorf("args %v: expected error, got %v", args, body)
			continue
		}
		if rpcErr["code"] != float64(codeInvalidParams) {
			t.Errorf("args %v: expected code %d, got %v", args, codeInvalidParams, rpcErr["code"])
		}
	}
}

func TestMCPProtocolErrors(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodPost, "/mcp", rpc(1, "resources/list", nil))
	if body["error"].(map[string]any)["code"] != float64(codeMethodNotFound) {
		t.Errorf("unknown method: unexpected response %v", body)
	}

	_, body = env.do(t, http.MethodPost, "/mcp", rpc(1, "tools/call", map[string]any{"name": "other"}))
	if body["error"].(map[string]any)["code"] != float64(codeInvalidParams) {
		t.Errorf("unknown tool: unexpected response %v", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader("{not json"))
	resp, err := env.srv.App().Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var parsed JSONRPCResponse
	json.NewDecoder(resp.Body).Decode(&parsed)
	resp.Body.Close()
	if parsed.Error == nil || parsed.Error.Code != codeParseError {
		t.Errorf("bad JSON: expected parse error, got %+v", parsed)
	}
}

func TestMCPNotification(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/mcp", map[string]any{
		"jsonrpc": "2.0",
		"method":  "notifications/initialized",
	})
	if status != http.StatusAccepted {
		t.Errorf("expected 202, got %d", status)
	}
	if body != nil {
		t.Errorf("expected no body, got %v", body)
	}
}

func TestResolve(t *testing.T) {
	s := &Server{root: "/srv/docs"}

	cases := map[string]string{
		"":                 "/srv/docs",
		"guide":            "/srv/docs/guide",
		"/srv/docs/a/b.md": "/srv/docs/a/b.md",
		"a/../b":           "/srv/docs/b",
	}
	for in, want := range cases {
		got, err := s.resolve(in)
		if err != nil {
			t.Errorf("resolve(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("resolve(%q) = %q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"..", "../x", "/etc/passwd", "/srv/docs-other"} {
		if _, err := s.resolve(bad); err == nil {
			t.Errorf("resolve(%q): expected error", bad)
		}
	}
}
