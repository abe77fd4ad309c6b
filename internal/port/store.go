package port

import (
	"context"

	"docrag/internal/domain"
)

// CorpusStore persists documents and their embedded chunks.
type CorpusStore interface {
	// SaveDocument registers doc and returns its ID. An existing document with
	// the same path is deleted together with all of its chunks first.
	SaveDocument(ctx context.Context, doc domain.Document) (int64, error)

	SaveChunk(ctx context.Context, documentID int64, chunk domain.Chunk, vector []byte) error

	// AllChunks returns every committed chunk in insertion order.
	AllChunks(ctx context.Context) ([]domain.StoredChunk, error)

	DocumentCount(ctx context.Context) (int, error)

	ChunkCount(ctx context.Context) (int, error)

	Close() error
}
