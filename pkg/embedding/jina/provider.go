package jina

import (
	"context"
	"net/http"
	"sort"

	"textbook-rag-be/pkg/embedding"
)

const (
	defaultBaseURL   = "https://api.jina.ai/v1/embeddings"
	defaultModel     = "jina-embeddings-v2-base-en"
	defaultDimension = 768
)

type JinaProvider struct {
	apiKey    string
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

var _ embedding.EmbeddingProvider = (*JinaProvider)(nil)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewJinaProvider(apiKey, model string, dimension int) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, &embedding.ConfigurationError{Provider: "jina", Setting: "JINA_API_KEY"}
	}
	if model == "" {
		model = defaultModel
	}
	if dimension <= 0 {
		dimension = defaultDimension
	}
	return &JinaProvider{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		model:     model,
		dimension: dimension,
		client:    embedding.DefaultHTTPClient,
	}, nil
}

// WithBaseURL points the provider at another endpoint.
func (p *JinaProvider) WithBaseURL(url string) *JinaProvider {
	p.baseURL = url
	return p
}

func (p *JinaProvider) Dimension() int {
	return p.dimension
}

func (p *JinaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *JinaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := embedding.PostJSON(ctx, p.client, "jina", p.baseURL, headers, embeddingRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, &embedding.UpstreamError{Provider: "jina", Message: resp.Error.Message}
	}

	// Results are matched back to inputs by index
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	if err := embedding.CheckBatch("jina", p.dimension, len(texts), vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}
