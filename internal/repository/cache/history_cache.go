package cache

import (
	"context"

	"textbook-rag-be/internal/entity"

	"github.com/google/uuid"
)

// HistoryCache holds the recent message window of a conversation. Misses and
// backend failures look the same to callers, who fall back to the database.
type HistoryCache interface {
	Get(ctx context.Context, conversationID uuid.UUID) ([]*entity.Message, bool)
	Set(ctx context.Context, conversationID uuid.UUID, messages []*entity.Message)
	Invalidate(ctx context.Context, conversationID uuid.UUID)
	Ping(ctx context.Context) error
	Name() string
}

func key(conversationID uuid.UUID) string {
	return "history:" + conversationID.String()
}
