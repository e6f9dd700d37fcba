package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"textbook-rag-be/pkg/embedding"
	"textbook-rag-be/pkg/llm"
	"textbook-rag-be/pkg/rag/stream"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want stream.ErrorCode
	}{
		{"validation", &ValidationError{Message: "Query is required"}, stream.CodeInvalidRequest},
		{"deadline", fmt.Errorf("embed: %w", context.DeadlineExceeded), stream.CodeTimeout},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), stream.CodeTimeout},
		{"embedding 429", &embedding.UpstreamError{Provider: "openai", StatusCode: http.StatusTooManyRequests}, stream.CodeRateLimit},
		{"llm 504", fmt.Errorf("stream: %w", &llm.StatusError{Provider: "ollama", StatusCode: http.StatusGatewayTimeout}), stream.CodeTimeout},
		{"go-openai 429", &goopenai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, stream.CodeRateLimit},
		{"status wins over text", &llm.StatusError{StatusCode: http.StatusInternalServerError, Message: "rate of failure high"}, stream.CodeServiceError},
		{"rate text", errors.New("Rate limit exceeded"), stream.CodeRateLimit},
		{"timeout text", errors.New("request timeout"), stream.CodeTimeout},
		{"timed out text", errors.New("upstream timed out"), stream.CodeTimeout},
		{"other", errors.New("boom"), stream.CodeServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestValidateQuery(t *testing.T) {
	q, err := ValidateQuery("  What is a servo?  ")
	require.NoError(t, err)
	assert.Equal(t, "What is a servo?", q)

	tests := []struct {
		query string
		msg   string
	}{
		{"", "Query is required"},
		{"   \n\t", "Query cannot be empty"},
		{strings.Repeat("a", MaxQueryLength+1), "Query is too long (max 1000 characters)"},
	}
	for _, tt := range tests {
		_, err := ValidateQuery(tt.query)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, tt.msg, vErr.Message)
	}

	_, err = ValidateQuery(strings.Repeat("é", MaxQueryLength))
	assert.NoError(t, err)
}
