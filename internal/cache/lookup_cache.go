package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// LookupCache keeps bibliographic lookups as JSON under a TTL.
type LookupCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewLookupCache(client *redisv9.Client, ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LookupCache{client: client, ttl: ttl}
}

func (c *LookupCache) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err == redisv9.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get lookup failed: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("unmarshal cached lookup failed: %w", err)
	}
	return true, nil
}

func (c *LookupCache) Set(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal lookup cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(key), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set lookup failed: %w", err)
	}
	return nil
}

func (c *LookupCache) key(k string) string {
	return "lookup:" + k
}
