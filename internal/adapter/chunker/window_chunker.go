package chunker

import (
	"fmt"

	"docrag/internal/domain"
)

const (
	DefaultChunkSize = 512
	DefaultOverlap   = 50
)

// WindowChunker splits text into fixed-size, overlapping character windows.
type WindowChunker struct {
	size    int
	overlap int
}

func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidChunking, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidChunking, size, overlap)
	}
	return &WindowChunker{
		size:    size,
		overlap: overlap,
	}, nil
}

func (c *WindowChunker) Size() int    { return c.size }
func (c *WindowChunker) Overlap() int { return c.overlap }

// Chunk emits windows starting at 0, step, 2*step, ... where step is
// size-overlap. The last window always ends at the end of the text and may
// be shorter than size.
func (c *WindowChunker) Chunk(text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, n/step+1)

	for pos, index := 0, 0; pos < n; pos, index = pos+step, index+1 {
		end := min(pos+c.size, n)
		chunks = append(chunks, domain.Chunk{
			Index:       index,
			Text:        string(runes[pos:end]),
			StartOffset: pos,
			EndOffset:   end,
		})
		if end == n {
			break
		}
	}

	return chunks, nil
}
