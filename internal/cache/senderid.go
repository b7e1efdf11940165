package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textship/textship/internal/model"
)

// Cache key prefixes and TTLs.
const (
	senderIDKeyPrefix = "sender:"

	// DefaultSenderIDTTL is the TTL for cached sender-ID statuses.
	// Short on purpose: an admin decision must become visible quickly
	// even if invalidation is missed.
	DefaultSenderIDTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

func senderIDKey(userID, value string) string {
	return senderIDKeyPrefix + userID + ":" + value
}

// GetSenderIDStatus retrieves a cached sender-ID status for a user.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetSenderIDStatus(ctx context.Context, userID, value string) (model.SenderIDStatus, error) {
	result, err := c.client.Get(ctx, senderIDKey(userID, value)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	status := model.SenderIDStatus(result)
	if !status.IsValid() {
		return "", ErrCacheMiss
	}
	return status, nil
}

// SetSenderIDStatus caches a sender-ID status for a user.
// The dispatch hot path reads this instead of Postgres.
func (c *Cache) SetSenderIDStatus(ctx context.Context, userID, value string, status model.SenderIDStatus) error {
	err := c.client.SetEx(ctx, senderIDKey(userID, value), string(status), DefaultSenderIDTTL).Err()
	if err != nil {
		return fmt.Errorf("failed to cache sender-id status: %w", err)
	}
	return nil
}

// InvalidateSenderID removes a cached sender-ID status.
// Called on admin approval or rejection.
func (c *Cache) InvalidateSenderID(ctx context.Context, userID, value string) error {
	err := c.client.Del(ctx, senderIDKey(userID, value)).Err()
	if err != nil {
		return fmt.Errorf("failed to invalidate sender-id cache: %w", err)
	}
	return nil
}
