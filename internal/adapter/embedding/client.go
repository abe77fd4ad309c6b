package embedding

import (
	"context"
	"log/slog"
	"time"

	retry "github.com/sethvargo/go-retry"

	"docrag/internal/adapter/codec"
	"docrag/internal/domain"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Client adds bounded retry with linear backoff on top of a Provider.
type Client struct {
	provider    Provider
	maxAttempts int
	baseDelay   time.Duration
}

func NewClient(provider Provider, maxAttempts int, baseDelay time.Duration) *Client {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay < 0 {
		baseDelay = 0
	}
	return &Client{
		provider:    provider,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

// backoff waits baseDelay*k before attempt k+1, with no jitter.
func (c *Client) backoff() retry.Backoff {
	var k time.Duration
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		k++
		return c.baseDelay * k, false
	})
	return retry.WithMaxRetries(uint64(c.maxAttempts-1), b)
}

// Embed returns the vector for text. After maxAttempts failures it returns
// *domain.EmbeddingProviderError. If ctx ends first, retrying stops and the
// context error is returned instead (see domain.FromContext).
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var (
		vec      []float32
		attempts int
		lastErr  error
	)

	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempts++
		v, err := c.provider.EmbedOnce(ctx, text)
		if err == nil && len(v) == 0 {
			err = errEmptyVector
		}
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if attempts < c.maxAttempts {
				slog.Warn("embedding attempt failed, will retry",
					"attempt", attempts,
					"max_attempts", c.maxAttempts,
					"model", c.provider.ModelName(),
					"error", err)
			}
			return retry.RetryableError(err)
		}
		vec = v
		return nil
	})
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil {
		return nil, domain.FromContext(ctx)
	}
	return nil, &domain.EmbeddingProviderError{Attempts: attempts, Err: lastErr}
}

// EmbedEncoded is Embed followed by codec.Encode.
func (c *Client) EmbedEncoded(ctx context.Context, text string) ([]byte, error) {
	v, err := c.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return codec.Encode(v), nil
}

func (c *Client) ModelName() string {
	return c.provider.ModelName()
}
