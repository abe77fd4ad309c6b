package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"docrag/internal/adapter/transport"
)

const DefaultOllamaURL = "http://localhost:11434"

type OllamaProvider struct {
	baseURL string
	model   string
	token   string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewOllamaProvider(baseURL, model, token string, client *http.Client) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		token:   token,
		client:  client,
	}
}

func (p *OllamaProvider) EmbedOnce(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaResponse
	err := transport.PostJSON(ctx, p.client, p.baseURL+"/api/embeddings", p.token,
		ollamaRequest{Model: p.model, Prompt: text}, &resp)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	return resp.Embedding, nil
}

func (p *OllamaProvider) ModelName() string {
	return p.model
}
