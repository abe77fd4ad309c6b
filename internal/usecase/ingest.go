package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"docrag/internal/adapter/codec"
	"docrag/internal/adapter/fs"
	"docrag/internal/domain"
	"docrag/internal/port"
)

const DefaultIngestWorkers = 4

// IngestUseCase discovers files, chunks them, embeds every chunk and
// persists the result.
type IngestUseCase struct {
	store    port.CorpusStore
	walker   port.FileWalker
	chunker  port.Chunker
	embedder port.Embedder
	workers  int
}

func NewIngestUseCase(
	store port.CorpusStore,
	walker port.FileWalker,
	chunker port.Chunker,
	embedder port.Embedder,
	workers int,
) *IngestUseCase {
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	return &IngestUseCase{
		store:    store,
		walker:   walker,
		chunker:  chunker,
		embedder: embedder,
		workers:  workers,
	}
}

// IngestResult contains the results of an ingestion run.
type IngestResult struct {
	FilesFound    int      `json:"files_found"`
	FilesIngested int      `json:"files_ingested"`
	FilesFailed   int      `json:"files_failed"`
	ChunksStored  int      `json:"chunks_stored"`
	ChunksFailed  int      `json:"chunks_failed"`
	Errors        []string `json:"errors,omitempty"`
}

// ProgressFunc is called after each file with the number of files handled
// so far.
type ProgressFunc func(done, total int, path string)

// Ingest processes every file under root. Failures of a single file or
// chunk are recorded in the result and do not stop the run. Cancelling ctx
// does, returning the partial result alongside the context error.
func (u *IngestUseCase) Ingest(ctx context.Context, root string, progress ProgressFunc) (*IngestResult, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	result := &IngestResult{FilesFound: len(files)}
	for i, file := range files {
		if ctx.Err() != nil {
			return result, domain.FromContext(ctx)
		}

		if file.Err != nil {
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, file.Err))
			slog.Warn("skipping unreadable path", "path", file.Path, "error", file.Err)
			if progress != nil {
				progress(i+1, len(files), file.Path)
			}
			continue
		}

		stored, failed, err := u.IngestDocument(ctx, file)
		result.ChunksStored += stored
		result.ChunksFailed += failed

		if err != nil {
			if ctx.Err() != nil {
				return result, domain.FromContext(ctx)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.Path, err))
		}
		if err == nil || stored > 0 {
			result.FilesIngested++
		} else {
			result.FilesFailed++
		}

		if progress != nil {
			progress(i+1, len(files), file.Path)
		}
	}

	slog.Info("ingestion finished",
		"files", result.FilesIngested,
		"failed_files", result.FilesFailed,
		"chunks", result.ChunksStored,
		"failed_chunks", result.ChunksFailed)
	return result, nil
}

// IngestDocument replaces the stored copy of file with freshly embedded
// chunks. Chunks are embedded concurrently; a chunk that fails is skipped
// and counted in failed, and the first such failure is returned as err once
// the remaining chunks are done.
func (u *IngestUseCase) IngestDocument(ctx context.Context, file port.SourceFile) (stored, failed int, err error) {
	if file.Err != nil {
		return 0, 0, fmt.Errorf("read: %w", file.Err)
	}
	text, err := fs.ReadFile(file.Path)
	if err != nil {
		return 0, 0, fmt.Errorf("read: %w", err)
	}

	chunks, err := u.chunker.Chunk(text)
	if err != nil {
		return 0, 0, fmt.Errorf("chunk: %w", err)
	}

	docID, err := u.store.SaveDocument(ctx, domain.Document{
		Path:    file.Path,
		Name:    file.Name,
		ModTime: file.ModTime,
	})
	if err != nil {
		return 0, 0, err
	}

	var (
		mu       sync.Mutex
		firstErr error
		g        errgroup.Group
	)
	g.SetLimit(u.workers)

	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		stored++
	}

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			vec, err := u.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				slog.Warn("embedding failed, skipping chunk", "path", file.Path, "chunk", chunk.Index, "error", err)
				record(fmt.Errorf("chunk %d: %w", chunk.Index, err))
				return nil
			}
			if err := u.store.SaveChunk(ctx, docID, chunk, codec.Encode(vec)); err != nil {
				slog.Warn("saving chunk failed", "path", file.Path, "chunk", chunk.Index, "error", err)
				record(fmt.Errorf("chunk %d: %w", chunk.Index, err))
				return nil
			}
			record(nil)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return stored, failed, domain.FromContext(ctx)
	}
	if firstErr != nil {
		return stored, failed, fmt.Errorf("%d of %d chunks failed: %w", failed, len(chunks), firstErr)
	}
	return stored, failed, nil
}
