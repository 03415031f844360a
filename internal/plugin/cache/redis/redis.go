// Package redis provides a conversation snapshot cache backed by Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chirino/chat-service/internal/config"
	registrycache "github.com/chirino/chat-service/internal/registry/cache"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.ConversationSnapshotCache, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis cache: CHAT_SERVICE_REDIS_URL is required")
	}
	ttl := cfg.CacheSnapshotTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return LoadFromURLWithTTL(ctx, cfg.RedisURL, ttl)
}

// LoadFromURL creates a ConversationSnapshotCache from a Redis-compatible URL.
func LoadFromURL(ctx context.Context, redisURL string) (registrycache.ConversationSnapshotCache, error) {
	return LoadFromURLWithTTL(ctx, redisURL, defaultTTL)
}

// LoadFromURLWithTTL creates a cache with an explicit snapshot TTL.
func LoadFromURLWithTTL(ctx context.Context, redisURL string, ttl time.Duration) (registrycache.ConversationSnapshotCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisSnapshotCache{client: client, ttl: ttl}, nil
}

type redisSnapshotCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func snapshotKey(conversationID uuid.UUID) string {
	return "conv-snapshot:" + conversationID.String()
}

func (c *redisSnapshotCache) Available() bool {
	return true
}

func (c *redisSnapshotCache) Get(ctx context.Context, conversationID uuid.UUID) (*registrycache.ConversationSnapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey(conversationID)).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap registrycache.ConversationSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *redisSnapshotCache) Set(ctx context.Context, conversationID uuid.UUID, snapshot registrycache.ConversationSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, snapshotKey(conversationID), data, ttl).Err()
}

func (c *redisSnapshotCache) Remove(ctx context.Context, conversationID uuid.UUID) error {
	return c.client.Del(ctx, snapshotKey(conversationID)).Err()
}

var _ registrycache.ConversationSnapshotCache = (*redisSnapshotCache)(nil)
