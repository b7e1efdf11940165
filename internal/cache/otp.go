package cache

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "otp:"

// OTP verification errors.
var (
	// ErrOTPNotFound means no active code exists (never issued, expired,
	// already consumed, or invalidated after too many attempts).
	ErrOTPNotFound = errors.New("otp not found or expired")

	// ErrOTPMismatch means an active code exists but the submitted code
	// does not match.
	ErrOTPMismatch = errors.New("otp code mismatch")
)

func otpKey(userID, to string) string {
	return otpKeyPrefix + userID + ":" + to
}

// HashOTP returns the hex SHA-256 digest of a code. Plaintext codes are
// never stored.
func HashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// StoreOTP stores the digest of a freshly issued code with a TTL.
// Issuing a new code for the same recipient replaces the previous one
// and resets the attempt counter.
func (c *Cache) StoreOTP(ctx context.Context, userID, to, code string, ttl time.Duration) error {
	key := otpKey(userID, to)

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"digest":   HashOTP(code),
		"attempts": 0,
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

// VerifyOTP checks a submitted code against the stored digest.
// The code is consumed on success. Each mismatch burns one attempt;
// once maxAttempts is reached the code is invalidated and further
// verifies report ErrOTPNotFound.
func (c *Cache) VerifyOTP(ctx context.Context, userID, to, code string, maxAttempts int) error {
	key := otpKey(userID, to)

	digest, err := c.client.HGet(ctx, key, "digest").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrOTPNotFound
		}
		return fmt.Errorf("redis hget failed: %w", err)
	}

	// Count the attempt before comparing so a burst of wrong guesses
	// cannot exceed the budget.
	attempts, err := c.client.HIncrBy(ctx, key, "attempts", 1).Result()
	if err != nil {
		return fmt.Errorf("redis hincrby failed: %w", err)
	}
	if attempts > int64(maxAttempts) {
		c.client.Del(ctx, key)
		return ErrOTPNotFound
	}

	if subtle.ConstantTimeCompare([]byte(HashOTP(code)), []byte(digest)) != 1 {
		if attempts >= int64(maxAttempts) {
			c.client.Del(ctx, key)
		}
		return ErrOTPMismatch
	}

	// Single use: consume on success.
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	return nil
}
