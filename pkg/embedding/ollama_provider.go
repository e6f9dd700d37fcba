package embedding

import (
	"context"
	"math"
	"net/http"
	"strings"
)

const ollamaDefaultDimension = 768

// OllamaProvider calls a local Ollama server (e.g. nomic-embed-text).
type OllamaProvider struct {
	BaseURL   string
	Model     string
	dimension int
	client    *http.Client
}

var _ EmbeddingProvider = (*OllamaProvider)(nil)

func NewOllamaProvider(baseURL, model string, dimension int) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dimension <= 0 {
		dimension = ollamaDefaultDimension
	}
	return &OllamaProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		dimension: dimension,
		client:    DefaultHTTPClient,
	}
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (p *OllamaProvider) Dimension() int {
	return p.dimension
}

func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbeddingResponse
	err := PostJSON(ctx, p.client, "ollama", p.BaseURL+"/api/embeddings", nil,
		ollamaEmbeddingRequest{Model: p.Model, Prompt: text}, &resp)
	if err != nil {
		return nil, err
	}

	values := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		values[i] = float32(v)
	}

	if err := CheckDimension("ollama", p.dimension, values); err != nil {
		return nil, err
	}

	// Cosine search expects unit vectors
	return normalizeVector(values), nil
}

// EmbedBatch calls the single-text endpoint once per input, in order.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// normalizeVector scales a vector to unit length.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
