package store

import (
	"context"
	"os"
	"testing"

	"docrag/internal/adapter/codec"
	"docrag/internal/domain"
)

func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("RAG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RAG_TEST_POSTGRES_DSN not set")
	}
	s, err := NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStoreReplaceDocument(t *testing.T) {
	s := newPostgresTestStore(t)
	ctx := context.Background()

	first, err := s.SaveDocument(ctx, domain.Document{Path: "/a.md", Name: "a.md"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChunk(ctx, first, domain.Chunk{Index: 0, Text: "old", EndOffset: 3}, codec.Encode([]float32{1, 2})); err != nil {
		t.Fatal(err)
	}

	second, err := s.SaveDocument(ctx, domain.Document{Path: "/a.md", Name: "a.md"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveChunk(ctx, second, domain.Chunk{Index: 0, Text: "new", EndOffset: 3}, codec.Encode([]float32{3, 4})); err != nil {
		t.Fatal(err)
	}

	all, err := s.AllChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Chunk.Text != "new" {
		t.Fatalf("expected only the replacement chunk, got %+v", all)
	}
	if v := codec.Decode(all[0].Vector); len(v) != 2 || v[1] != 4 {
		t.Errorf("unexpected vector %v", v)
	}

	docs, _ := s.DocumentCount(ctx)
	chunks, _ := s.ChunkCount(ctx)
	if docs != 1 || chunks != 1 {
		t.Errorf("expected 1/1, got %d/%d", docs, chunks)
	}
}
