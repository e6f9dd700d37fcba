package cache

import (
	"context"
	"testing"
	"time"

	"textbook-rag-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryHistoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryHistoryCache(time.Minute)
	id := uuid.New()

	_, found := c.Get(ctx, id)
	assert.False(t, found)

	msgs := []*entity.Message{{Id: uuid.New(), ConversationId: id, Role: entity.MessageRoleUser, Content: "hi"}}
	c.Set(ctx, id, msgs)

	got, found := c.Get(ctx, id)
	require.True(t, found)
	assert.Equal(t, msgs, got)

	c.Invalidate(ctx, id)
	_, found = c.Get(ctx, id)
	assert.False(t, found)

	assert.NoError(t, c.Ping(ctx))
	assert.Equal(t, "memory", c.Name())
}

func TestMemoryHistoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryHistoryCache(10 * time.Millisecond)
	id := uuid.New()

	c.Set(ctx, id, []*entity.Message{})
	time.Sleep(30 * time.Millisecond)

	_, found := c.Get(ctx, id)
	assert.False(t, found)
}
