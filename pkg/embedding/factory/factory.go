package factory

import (
	"fmt"

	"textbook-rag-be/pkg/embedding"
	"textbook-rag-be/pkg/embedding/jina"
	"textbook-rag-be/pkg/embedding/openai"
)

// Keys carries the credentials a provider may need.
type Keys struct {
	OpenAI string
	Gemini string
	Jina   string
}

// NewEmbeddingProvider builds the configured provider. dimension <= 0 keeps
// the provider default.
func NewEmbeddingProvider(providerType, model, ollamaBaseURL string, dimension int, keys Keys) (embedding.EmbeddingProvider, error) {
	switch providerType {
	case "openai":
		p, err := openai.NewOpenAIProvider(keys.OpenAI, "", model, dimension)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "ollama":
		if ollamaBaseURL == "" {
			ollamaBaseURL = "http://localhost:11434"
		}
		return embedding.NewOllamaProvider(ollamaBaseURL, model, dimension), nil
	case "gemini":
		p, err := embedding.NewGeminiProvider(keys.Gemini, model, dimension)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "jina":
		p, err := jina.NewJinaProvider(keys.Jina, model, dimension)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", providerType)
	}
}
