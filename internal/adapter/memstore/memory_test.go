package memstore

import (
	"context"
	"testing"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.CorpusStore = (*MemoryStore)(nil)

func TestMemoryStoreReplace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _ := s.SaveDocument(ctx, domain.Document{Path: "/a.md", Name: "a.md"})
	s.SaveChunk(ctx, a, domain.Chunk{Index: 0, Text: "old"}, []byte{1, 2, 3, 4})
	b, _ := s.SaveDocument(ctx, domain.Document{Path: "/b.md", Name: "b.md"})
	s.SaveChunk(ctx, b, domain.Chunk{Index: 0, Text: "b"}, []byte{1, 2, 3, 4})

	a2, _ := s.SaveDocument(ctx, domain.Document{Path: "/a.md", Name: "a.md"})
	s.SaveChunk(ctx, a2, domain.Chunk{Index: 0, Text: "new"}, []byte{1, 2, 3, 4})

	all, _ := s.AllChunks(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(all))
	}
	if all[0].Chunk.Text != "b" || all[1].Chunk.Text != "new" {
		t.Errorf("unexpected order %q, %q", all[0].Chunk.Text, all[1].Chunk.Text)
	}
	if n, _ := s.DocumentCount(ctx); n != 2 {
		t.Errorf("expected 2 documents, got %d", n)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.SaveDocument(ctx, domain.Document{Path: "/a.md"})
	s.SaveChunk(ctx, id, domain.Chunk{Index: 0}, []byte{0, 0, 0, 0})

	snapshot, _ := s.AllChunks(ctx)
	s.SaveChunk(ctx, id, domain.Chunk{Index: 1}, []byte{0, 0, 0, 0})

	if len(snapshot) != 1 {
		t.Errorf("expected earlier read to be unaffected, got %d chunks", len(snapshot))
	}
	if n, _ := s.ChunkCount(ctx); n != 2 {
		t.Errorf("expected 2 chunks, got %d", n)
	}
}

func TestMemoryStoreUnknownDocument(t *testing.T) {
	if err := NewMemoryStore().SaveChunk(context.Background(), 9, domain.Chunk{}, nil); err == nil {
		t.Error("expected error")
	}
}
