package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"textbook-rag-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ModelName: modelName,
		Client: &http.Client{
			// No overall timeout: streamed answers are bounded by the request context
			Transport: &http.Transport{ResponseHeaderTimeout: 120 * time.Second},
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Stream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7, Model: o.ModelName}, opts...)

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = llm.RoleAssistant
		}
		ollamaMessages[i] = ollamaMessage{Role: role, Content: msg.Content}
	}

	reqPayload := ollamaChatRequest{
		Model:    options.Model,
		Messages: ollamaMessages,
		Stream:   true,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &llm.StatusError{Provider: "ollama", StatusCode: resp.StatusCode, Message: string(bodyBytes)}
	}

	return &ndjsonStream{body: resp.Body, dec: json.NewDecoder(resp.Body)}, nil
}

// ndjsonStream reads one JSON object per line from /api/chat.
type ndjsonStream struct {
	body io.ReadCloser
	dec  *json.Decoder
	done bool
}

func (s *ndjsonStream) Recv() (string, error) {
	for !s.done {
		var chunk ollamaChatResponse
		if err := s.dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true
				break
			}
			return "", fmt.Errorf("decode ollama stream response: %w", err)
		}

		if chunk.Error != "" {
			return "", fmt.Errorf("ollama chat error: %s", chunk.Error)
		}
		if chunk.Done {
			s.done = true
		}
		if chunk.Message.Content != "" {
			return chunk.Message.Content, nil
		}
	}
	return "", io.EOF
}

func (s *ndjsonStream) Close() error {
	s.done = true
	return s.body.Close()
}
