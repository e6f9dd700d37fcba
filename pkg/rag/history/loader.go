package history

import (
	"context"

	"textbook-rag-be/pkg/llm"
)

// Source reads stored messages of a conversation, oldest first.
type Source interface {
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]llm.Message, error)
}

// Loader resolves the history a request should be answered with.
type Loader struct {
	source Source
	limit  int
}

func NewLoader(source Source, limit int) *Loader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Loader{source: source, limit: limit}
}

// Load prefers history sent by the client. Stored messages are only read when
// the client sent none and named a conversation.
func (l *Loader) Load(ctx context.Context, conversationID string, supplied []llm.Message) ([]llm.Message, error) {
	if len(supplied) > 0 || conversationID == "" || l.source == nil {
		return Window(supplied, l.limit), nil
	}

	stored, err := l.source.RecentMessages(ctx, conversationID, l.limit)
	if err != nil {
		return nil, err
	}
	return Window(stored, l.limit), nil
}
