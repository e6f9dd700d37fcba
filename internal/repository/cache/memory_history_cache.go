package cache

import (
	"context"
	"time"

	"textbook-rag-be/internal/entity"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

type MemoryHistoryCache struct {
	cache *gocache.Cache
}

// NewMemoryHistoryCache purges expired entries every ttl.
func NewMemoryHistoryCache(ttl time.Duration) *MemoryHistoryCache {
	return &MemoryHistoryCache{
		cache: gocache.New(ttl, ttl),
	}
}

func (c *MemoryHistoryCache) Get(ctx context.Context, conversationID uuid.UUID) ([]*entity.Message, bool) {
	if x, found := c.cache.Get(key(conversationID)); found {
		return x.([]*entity.Message), true
	}
	return nil, false
}

func (c *MemoryHistoryCache) Set(ctx context.Context, conversationID uuid.UUID, messages []*entity.Message) {
	c.cache.Set(key(conversationID), messages, gocache.DefaultExpiration)
}

func (c *MemoryHistoryCache) Invalidate(ctx context.Context, conversationID uuid.UUID) {
	c.cache.Delete(key(conversationID))
}

func (c *MemoryHistoryCache) Ping(ctx context.Context) error {
	return nil
}

func (c *MemoryHistoryCache) Name() string {
	return "memory"
}
