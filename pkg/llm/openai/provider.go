package openai

import (
	"context"
	"errors"
	"io"

	"textbook-rag-be/pkg/llm"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider streams chat completions from OpenAI or any endpoint that
// speaks the same protocol.
type OpenAIProvider struct {
	name   string
	client *goopenai.Client
	model  string
}

var _ llm.LLMProvider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey, baseURL, model string) (*OpenAIProvider, error) {
	return NewCompatibleProvider("openai", apiKey, baseURL, model)
}

// NewCompatibleProvider is used for OpenAI-compatible routers. name only
// affects error messages.
func NewCompatibleProvider(name, apiKey, baseURL, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, &llm.ConfigurationError{Provider: name, Setting: "api key"}
	}
	if model == "" {
		return nil, &llm.ConfigurationError{Provider: name, Setting: "model"}
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAIProvider{
		name:   name,
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7, Model: p.model}, opts...)

	req := goopenai.ChatCompletionRequest{
		Model:       options.Model,
		Stream:      true,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	}
	req.Messages = make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		req.Messages[i] = goopenai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, p.wrapError(err)
	}
	return &completionStream{provider: p, stream: stream}, nil
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Provider: p.name, StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.StatusError{Provider: p.name, StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}
	return err
}

type completionStream struct {
	provider *OpenAIProvider
	stream   *goopenai.ChatCompletionStream
}

func (s *completionStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", s.provider.wrapError(err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *completionStream) Close() error {
	return s.stream.Close()
}
