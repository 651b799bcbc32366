package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
)

const redisKeyPrefix = "contract-approvals:models:"

// RedisModelCache shares model listings between instances through Redis
type RedisModelCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisModelCache connects to redisURL (redis://host:port/db) and pings it
func NewRedisModelCache(ctx context.Context, redisURL string, logger *zap.Logger) (*RedisModelCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("Redis model cache connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &RedisModelCache{client: client, logger: logger}, nil
}

func (c *RedisModelCache) Get(ctx context.Context, key string) ([]string, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var models []string
	if err := json.Unmarshal(raw, &models); err != nil {
		// a corrupt entry behaves like a miss and is overwritten on the next Set
		c.logger.Warn("Discarding malformed model cache entry", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	return models, true, nil
}

func (c *RedisModelCache) Set(ctx context.Context, key string, models []string, ttl time.Duration) error {
	raw, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("marshal models: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisModelCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the connection for health reporting
func (c *RedisModelCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (c *RedisModelCache) Close() error {
	return c.client.Close()
}

var _ port.ModelCache = (*RedisModelCache)(nil)
