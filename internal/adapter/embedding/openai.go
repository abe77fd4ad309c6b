package embedding

import (
	"context"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIProvider talks to any OpenAI-compatible /embeddings endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider reads the API key from apiKeyEnv. The key is only
// mandatory against the hosted OpenAI endpoint; self-hosted compatible
// servers usually accept anything.
func NewOpenAIProvider(apiKeyEnv, model, baseURL string, httpClient *http.Client) (*OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = DefaultOpenAIURL
	}
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" && baseURL == DefaultOpenAIURL {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) EmbedOnce(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}

	src := resp.Data[0].Embedding
	v := make([]float32, len(src))
	for i := range src {
		v[i] = float32(src[i])
	}
	return v, nil
}

func (p *OpenAIProvider) ModelName() string {
	return p.model
}
