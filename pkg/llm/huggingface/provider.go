package huggingface

import (
	"textbook-rag-be/pkg/llm/openai"
)

const defaultRouterURL = "https://router.huggingface.co/v1"

// NewHuggingFaceProvider targets the Hugging Face inference router, which
// exposes the OpenAI chat completions protocol.
func NewHuggingFaceProvider(apiKey, baseURL, model string) (*openai.OpenAIProvider, error) {
	if baseURL == "" {
		baseURL = defaultRouterURL
	}
	return openai.NewCompatibleProvider("huggingface", apiKey, baseURL, model)
}
