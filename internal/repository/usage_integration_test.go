//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/textship/textship/internal/model"
	"github.com/textship/textship/internal/testutil"
)

// ============================================================================
// Usage Repository Integration Tests
// ============================================================================

func TestIntegrationUsage_BulkInsertIdempotent(t *testing.T) {
	ctx, repo := newUsageTestEnv(t)
	usageRepo := NewUsageRepository(repo)

	userID := testutil.UniqueID("user")
	keyID := testutil.UniqueID("key")

	records := []*model.UsageRecord{
		testutil.NewTestUsageRecord(t, userID, keyID, testutil.UniqueID("evt")),
		testutil.NewTestUsageRecord(t, userID, keyID, testutil.UniqueID("evt")),
	}
	if err := usageRepo.BulkInsert(ctx, records); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	// Replay the same batch: event_id conflict makes it a no-op.
	replay := []*model.UsageRecord{
		testutil.NewTestUsageRecord(t, userID, keyID, records[0].EventID),
	}
	if err := usageRepo.BulkInsert(ctx, replay); err != nil {
		t.Fatalf("replay BulkInsert failed: %v", err)
	}

	listed, err := usageRepo.ListRecentByUser(ctx, userID, 10)
	if err != nil {
		t.Fatalf("ListRecentByUser failed: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("records = %d, want 2 (replay must not duplicate)", len(listed))
	}
}

func TestIntegrationUsage_SummarizeByUser(t *testing.T) {
	ctx, repo := newUsageTestEnv(t)
	usageRepo := NewUsageRepository(repo)

	userID := testutil.UniqueID("user")
	keyID := testutil.UniqueID("key")

	var records []*model.UsageRecord
	for i := 0; i < 3; i++ {
		record := testutil.NewTestUsageRecord(t, userID, keyID, testutil.UniqueID("evt"))
		record.CostMicro = 10_000
		record.RequestSizeBytes = 100
		record.ResponseSizeBytes = 200
		records = append(records, record)
	}
	// A record for someone else must not leak into the summary.
	records = append(records, testutil.NewTestUsageRecord(t, testutil.UniqueID("other"), keyID, testutil.UniqueID("evt")))

	if err := usageRepo.BulkInsert(ctx, records); err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	summary, err := usageRepo.SummarizeByUser(ctx, userID, from, to)
	if err != nil {
		t.Fatalf("SummarizeByUser failed: %v", err)
	}

	if summary.RequestCount != 3 {
		t.Errorf("RequestCount = %d, want 3", summary.RequestCount)
	}
	if summary.TotalBytes != 3*300 {
		t.Errorf("TotalBytes = %d, want 900", summary.TotalBytes)
	}
	if summary.TotalCostMicro != 30_000 {
		t.Errorf("TotalCostMicro = %d, want 30000", summary.TotalCostMicro)
	}

	// Empty window
	empty, err := usageRepo.SummarizeByUser(ctx, userID, from.Add(-2*time.Hour), from.Add(-time.Hour))
	if err != nil {
		t.Fatalf("SummarizeByUser (empty) failed: %v", err)
	}
	if empty.RequestCount != 0 || empty.TotalCostMicro != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}

func newUsageTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetUsageSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset usage_records schema: %v", err)
	}

	return ctx, repo
}
