package openai

import (
	"context"
	"errors"
	"sort"

	"textbook-rag-be/pkg/embedding"

	goopenai "github.com/sashabaranov/go-openai"
)

const defaultModel = "text-embedding-3-small"

var defaultDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

type OpenAIProvider struct {
	client    *goopenai.Client
	model     string
	dimension int
}

var _ embedding.EmbeddingProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider builds a client for the OpenAI embeddings API or any
// compatible endpoint when baseURL is set.
func NewOpenAIProvider(apiKey, baseURL, model string, dimension int) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, &embedding.ConfigurationError{Provider: "openai", Setting: "OPENAI_API_KEY"}
	}
	if model == "" {
		model = defaultModel
	}
	if dimension <= 0 {
		dimension = defaultDimensions[model]
	}
	if dimension <= 0 {
		return nil, &embedding.ConfigurationError{Provider: "openai", Setting: "EMBEDDING_DIMENSION"}
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		client:    goopenai.NewClientWithConfig(cfg),
		model:     model,
		dimension: dimension,
	}, nil
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Model: goopenai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		return nil, wrapError(err)
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vectors := make([][]float32, len(resp.Data))
	for i, datum := range resp.Data {
		vectors[i] = datum.Embedding
	}
	if err := embedding.CheckBatch("openai", p.dimension, len(texts), vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// wrapError keeps the HTTP status from go-openai so callers can classify it.
func wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &embedding.UpstreamError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &embedding.UpstreamError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return &embedding.UpstreamError{Provider: "openai", Err: err}
}
