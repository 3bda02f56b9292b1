package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache tracks the current refresh token of each user in Redis.
// Key format: token:<user_id>
type TokenCache struct {
	client *redis.Client
}

// NewTokenCache creates a TokenCache wrapping the given Redis client.
func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

// Get returns the cached refresh token for userID. A missing or expired entry
// is reported as ok=false without error.
func (c *TokenCache) Get(ctx context.Context, userID int64) (string, bool, error) {
	val, err := c.client.Get(ctx, c.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("token cache get: %w", err)
	}
	return val, true, nil
}

// Set records token as the current refresh token of userID for ttl.
func (c *TokenCache) Set(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(userID), token, ttl).Err(); err != nil {
		return fmt.Errorf("token cache set: %w", err)
	}
	return nil
}

// Delete removes the entry for userID. Deleting a missing entry is not an error.
func (c *TokenCache) Delete(ctx context.Context, userID int64) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("token cache delete: %w", err)
	}
	return nil
}

func (c *TokenCache) key(userID int64) string {
	return "token:" + strconv.FormatInt(userID, 10)
}
