package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docrag/internal/domain"
)

// MemoryStore is a CorpusStore kept entirely in process memory. It has the
// same replace and ordering semantics as the persistent stores.
type MemoryStore struct {
	mu        sync.RWMutex
	nextDoc   int64
	nextChunk int64
	docs      map[int64]domain.Document
	paths     map[string]int64
	chunks    []domain.StoredChunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[int64]domain.Document),
		paths: make(map[string]int64),
	}
}

func (s *MemoryStore) SaveDocument(ctx context.Context, doc domain.Document) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.paths[doc.Path]; ok {
		s.deleteDocument(old)
	}

	s.nextDoc++
	doc.ID = s.nextDoc
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	s.docs[doc.ID] = doc
	s.paths[doc.Path] = doc.ID
	return doc.ID, nil
}

func (s *MemoryStore) deleteDocument(id int64) {
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != id {
			kept = append(kept, c)
		}
	}
	clear(s.chunks[len(kept):])
	s.chunks = kept

	delete(s.paths, s.docs[id].Path)
	delete(s.docs, id)
}

func (s *MemoryStore) SaveChunk(ctx context.Context, documentID int64, chunk domain.Chunk, vector []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return fmt.Errorf("document not found: %d", documentID)
	}

	s.nextChunk++
	s.chunks = append(s.chunks, domain.StoredChunk{
		ChunkID:    s.nextChunk,
		DocumentID: documentID,
		FileName:   doc.Name,
		FilePath:   doc.Path,
		Chunk:      chunk,
		Vector:     append([]byte(nil), vector...),
	})
	return nil
}

// AllChunks returns a copy of the chunks committed so far.
func (s *MemoryStore) AllChunks(ctx context.Context) ([]domain.StoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StoredChunk, len(s.chunks))
	copy(out, s.chunks)
	return out, nil
}

func (s *MemoryStore) DocumentCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemoryStore) ChunkCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
