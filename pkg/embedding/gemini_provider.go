package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	geminiDefaultModel     = "text-embedding-004"
	geminiDefaultDimension = 768
	geminiDefaultBaseURL   = "https://generativelanguage.googleapis.com/v1"
)

type GeminiProvider struct {
	ApiKey    string
	BaseURL   string
	Model     string
	dimension int
	client    *http.Client
}

var _ EmbeddingProvider = (*GeminiProvider)(nil)

func NewGeminiProvider(apiKey, model string, dimension int) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Provider: "gemini", Setting: "GOOGLE_GEMINI_API_KEY"}
	}
	if model == "" {
		model = geminiDefaultModel
	}
	if dimension <= 0 {
		dimension = geminiDefaultDimension
	}
	return &GeminiProvider{
		ApiKey:    apiKey,
		BaseURL:   geminiDefaultBaseURL,
		Model:     model,
		dimension: dimension,
		client:    DefaultHTTPClient,
	}, nil
}

func (p *GeminiProvider) Dimension() int {
	return p.dimension
}

func (p *GeminiProvider) headers() map[string]string {
	return map[string]string{"x-goog-api-key": p.ApiKey}
}

func (p *GeminiProvider) request(text, taskType string) EmbeddingRequest {
	return EmbeddingRequest{
		Model:    "models/" + p.Model,
		Content:  EmbeddingRequestContent{Parts: []EmbeddingRequestContentPart{{Text: text}}},
		TaskType: taskType,
	}
}

// Embed is used for user queries.
func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	endpoint := fmt.Sprintf("%s/models/%s:embedContent", strings.TrimRight(p.BaseURL, "/"), p.Model)

	var resp EmbeddingResponse
	if err := PostJSON(ctx, p.client, "gemini", endpoint, p.headers(), p.request(text, TaskRetrievalQuery), &resp); err != nil {
		return nil, err
	}

	if err := CheckDimension("gemini", p.dimension, resp.Embedding.Values); err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch is used for indexed passages.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents", strings.TrimRight(p.BaseURL, "/"), p.Model)

	batch := BatchEmbeddingRequest{Requests: make([]EmbeddingRequest, len(texts))}
	for i, text := range texts {
		batch.Requests[i] = p.request(text, TaskRetrievalDocument)
	}

	var resp BatchEmbeddingResponse
	if err := PostJSON(ctx, p.client, "gemini", endpoint, p.headers(), batch, &resp); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	if err := CheckBatch("gemini", p.dimension, len(texts), vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}
