package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"textbook-rag-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDecodesNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "llama3", req.Model)
		assert.Equal(t, 1024, req.Options.NumPredict)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "assistant", req.Messages[1].Role)

		for _, part := range []string{"Physical ", "", "AI"} {
			fmt.Fprintf(w, `{"model":"llama3","message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
		}
		fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3")
	stream, err := p.Stream(context.Background(), []llm.Message{
		{Role: "system", Content: "sys"},
		{Role: "model", Content: "earlier"},
	}, llm.WithMaxTokens(1024))
	require.NoError(t, err)

	text, err := llm.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Physical AI", text)
}

func TestStreamRecvAfterDoneIsEOF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"only"},"done":true}`)
	}))
	defer srv.Close()

	stream, err := NewOllamaProvider(srv.URL, "m").Stream(context.Background(), nil)
	require.NoError(t, err)
	defer stream.Close()

	first, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "only", first)

	_, err = stream.Recv()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestStreamErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("model loading"))
		}))
		defer srv.Close()

		_, err := NewOllamaProvider(srv.URL, "m").Stream(context.Background(), nil)

		var statusErr *llm.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.HTTPStatus())
	})

	t.Run("in-band", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"error":"out of memory"}`)
		}))
		defer srv.Close()

		stream, err := NewOllamaProvider(srv.URL, "m").Stream(context.Background(), nil)
		require.NoError(t, err)

		_, err = llm.Collect(stream)
		assert.ErrorContains(t, err, "out of memory")
	})
}
