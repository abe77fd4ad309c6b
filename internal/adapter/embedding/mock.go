package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// MockProvider produces deterministic vectors offline by hashing each
// lowercased word into one of dimension buckets. Texts sharing words get a
// positive cosine similarity.
type MockProvider struct {
	dimension int
}

func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockProvider{dimension: dimension}
}

func (p *MockProvider) EmbedOnce(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float32, p.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(p.dimension)]++
	}
	return v, nil
}

func (p *MockProvider) ModelName() string {
	return "mock"
}
