package cache

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// TokenDenylist records revoked refresh token ids until they would have expired anyway.
type TokenDenylist struct {
	client *redisv9.Client
}

func NewTokenDenylist(client *redisv9.Client) *TokenDenylist {
	return &TokenDenylist{client: client}
}

// Revoke returns false if the id was already revoked or has expired.
func (d *TokenDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) (bool, error) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return false, nil
	}
	set, err := d.client.SetNX(ctx, d.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis revoke token failed: %w", err)
	}
	return set, nil
}

func (d *TokenDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	exists, err := d.client.Exists(ctx, d.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check revoked token failed: %w", err)
	}
	return exists > 0, nil
}

func (d *TokenDenylist) key(tokenID string) string {
	return "auth:revoked:" + tokenID
}
