package embedding

import (
	"context"
	"errors"
)

// Provider performs a single embedding request with no retry.
type Provider interface {
	EmbedOnce(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

var errEmptyVector = errors.New("provider returned an empty vector")
