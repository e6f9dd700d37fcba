package factory

import (
	"fmt"

	"textbook-rag-be/pkg/llm"
	"textbook-rag-be/pkg/llm/huggingface"
	"textbook-rag-be/pkg/llm/ollama"
	"textbook-rag-be/pkg/llm/openai"
)

func NewLLMProvider(providerType, modelName, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		p, err := openai.NewOpenAIProvider(apiKey, baseURL, modelName)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "huggingface":
		p, err := huggingface.NewHuggingFaceProvider(apiKey, baseURL, modelName)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
