package cache

import (
	"context"
	"encoding/json"
	"time"

	"textbook-rag-be/internal/entity"
	"textbook-rag-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisHistoryCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.ILogger
}

func NewRedisHistoryCache(rdb *redis.Client, ttl time.Duration, log logger.ILogger) *RedisHistoryCache {
	return &RedisHistoryCache{rdb: rdb, ttl: ttl, logger: log}
}

func (c *RedisHistoryCache) Get(ctx context.Context, conversationID uuid.UUID) ([]*entity.Message, bool) {
	raw, err := c.rdb.Get(ctx, key(conversationID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("CACHE", "Redis read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}

	var messages []*entity.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		c.logger.Warn("CACHE", "Discarding undecodable history entry", map[string]interface{}{"conversation_id": conversationID.String()})
		c.Invalidate(ctx, conversationID)
		return nil, false
	}
	return messages, true
}

func (c *RedisHistoryCache) Set(ctx context.Context, conversationID uuid.UUID, messages []*entity.Message) {
	raw, err := json.Marshal(messages)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(conversationID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("CACHE", "Redis write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *RedisHistoryCache) Invalidate(ctx context.Context, conversationID uuid.UUID) {
	if err := c.rdb.Del(ctx, key(conversationID)).Err(); err != nil {
		c.logger.Warn("CACHE", "Redis delete failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *RedisHistoryCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisHistoryCache) Name() string {
	return "redis"
}
