package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"campsite/config"
)

// cacheKey is where the last pull lives in Redis.
const cacheKey = "sheets:last_pull"

// Cache keeps the most recent sheet pull in Redis with a TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to Redis using the application config and verifies the
// connection with a ping.
func NewCache(ctx context.Context) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("NewCache: connect to Redis: %w", err)
	}

	return &Cache{
		client: client,
		ttl:    time.Duration(config.AppConfig.SheetCacheTTLMinutes) * time.Minute,
	}, nil
}

// Get returns the cached pull, or nil on a cold cache.
func (c *Cache) Get(ctx context.Context) (*Result, error) {
	raw, err := c.client.Get(ctx, cacheKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Cache.Get: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("Cache.Get: parse cached rows: %w", err)
	}
	return &result, nil
}

// Set stores a pull with the configured TTL.
func (c *Cache) Set(ctx context.Context, result *Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("Cache.Set: marshal rows: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("Cache.Set: %w", err)
	}
	return nil
}

// Clear drops the cached pull.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("Cache.Clear: %w", err)
	}
	return nil
}
