package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/textship/textship/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// resetSchema re-applies one migration pair (down then up).
func resetSchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downPath := filepath.Join(root, "migrations", name+".down.sql")
	upPath := filepath.Join(root, "migrations", name+".up.sql")

	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		return fmt.Errorf("read down migration %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration %s: %w", name, err)
	}

	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return fmt.Errorf("read up migration %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration %s: %w", name, err)
	}

	return nil
}

// ResetUsersSchema drops and recreates the users schema for tests.
func ResetUsersSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000002_users")
}

// ResetAPIKeysSchema drops and recreates the api_keys schema for tests.
func ResetAPIKeysSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000003_api_keys")
}

// ResetSenderIDsSchema drops and recreates the sender_ids schema for tests.
func ResetSenderIDsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000004_sender_ids")
}

// ResetUsageSchema drops and recreates the usage_records schema for tests.
func ResetUsageSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000005_usage_records")
}

// ResetRoutesSchema drops and recreates the client_api_routes schema for tests.
func ResetRoutesSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000006_client_api_routes")
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with a funded wallet.
func NewTestUser(t testing.TB, balanceMicro int64) *model.User {
	t.Helper()
	now := time.Now().UTC()
	return &model.User{
		ID:           fmt.Sprintf("user-%d", now.UnixNano()),
		Email:        fmt.Sprintf("user-%d@example.com", now.UnixNano()),
		BalanceMicro: balanceMicro,
		CreatedAt:    now,
	}
}

// NewTestSenderID creates a pending sender ID submission.
func NewTestSenderID(t testing.TB, userID, value string) *model.SenderID {
	t.Helper()
	now := time.Now().UTC()
	return &model.SenderID{
		ID:            fmt.Sprintf("snd-%d", now.UnixNano()),
		UserID:        userID,
		Value:         value,
		Status:        model.SenderIDPending,
		Purpose:       "transactional notifications",
		SampleMessage: "Your order has shipped",
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:            fmt.Sprintf("key-%d", now.UnixNano()),
		UserID:        userID,
		KeyHash:       fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix:     "tx_test_",
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierFree,
		Name:          "Test Key",
		CreatedAt:     now,
	}
}

// NewTestAPIKeyWithTier creates a test API key with a specific tier.
func NewTestAPIKeyWithTier(t testing.TB, userID string, tier string) *model.APIKey {
	t.Helper()
	key := NewTestAPIKey(t, userID)
	key.RateLimitTier = tier
	return key
}

// NewTestUsageRecord creates a usage record for one request.
func NewTestUsageRecord(t testing.TB, userID, apiKeyID, eventID string) *model.UsageRecord {
	t.Helper()
	now := time.Now().UTC()
	return &model.UsageRecord{
		ID:                fmt.Sprintf("usg-%d", now.UnixNano()),
		EventID:           eventID,
		UserID:            userID,
		APIKeyID:          apiKeyID,
		Endpoint:          "/api/v1/client/sms/send",
		Method:            "POST",
		StatusCode:        200,
		ResponseTimeMs:    12,
		RequestSizeBytes:  128,
		ResponseSizeBytes: 256,
		CostMicro:         10_000,
		Timestamp:         now,
		CreatedAt:         now,
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
