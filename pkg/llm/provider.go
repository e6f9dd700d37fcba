package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// ApplyOptions resolves options on top of defaults.
func ApplyOptions(defaults Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&defaults)
	}
	return defaults
}

// Stream is a finite, non-restartable sequence of generated text fragments.
// Recv returns io.EOF once the model has finished. Close releases the
// underlying connection and is safe to call more than once.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Stream starts a streamed completion for the given conversation
	Stream(ctx context.Context, history []Message, options ...Option) (Stream, error)
}

// Collect drains a stream into a single string.
func Collect(s Stream) (string, error) {
	defer s.Close()

	var b strings.Builder
	for {
		fragment, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		b.WriteString(fragment)
	}
}

// ConfigurationError means the provider cannot be built from the given settings.
type ConfigurationError struct {
	Provider string
	Setting  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s llm provider: %s is required", e.Provider, e.Setting)
}

// StatusError is a non-2xx answer from the model backend.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}
