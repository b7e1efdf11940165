//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/textship/textship/internal/model"
	"github.com/textship/textship/internal/testutil"
)

// ============================================================================
// Client API Route Repository Integration Tests
// ============================================================================

func newTestRoute(userID, route string) *model.ClientAPIRoute {
	now := time.Now().UTC()
	return &model.ClientAPIRoute{
		ID:        testutil.UniqueID("route"),
		UserID:    userID,
		Route:     route,
		MappedTo:  "/api/v1/client/sms/send",
		RateLimit: 60,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIntegrationRoutes_CreateAndGet(t *testing.T) {
	ctx, repo := newRouteTestEnv(t)

	userID := testutil.UniqueID("user")
	route := newTestRoute(userID, "/notify")
	if err := repo.CreateClientAPIRoute(ctx, route); err != nil {
		t.Fatalf("CreateClientAPIRoute failed: %v", err)
	}

	retrieved, err := repo.GetClientAPIRoute(ctx, userID, "/notify")
	if err != nil {
		t.Fatalf("GetClientAPIRoute failed: %v", err)
	}
	if retrieved.MappedTo != route.MappedTo {
		t.Errorf("MappedTo = %q, want %q", retrieved.MappedTo, route.MappedTo)
	}
	if retrieved.RateLimit != 60 {
		t.Errorf("RateLimit = %d, want 60", retrieved.RateLimit)
	}
}

func TestIntegrationRoutes_DuplicatePerUser(t *testing.T) {
	ctx, repo := newRouteTestEnv(t)

	userID := testutil.UniqueID("user")
	if err := repo.CreateClientAPIRoute(ctx, newTestRoute(userID, "/notify")); err != nil {
		t.Fatalf("CreateClientAPIRoute (first) failed: %v", err)
	}
	if err := repo.CreateClientAPIRoute(ctx, newTestRoute(userID, "/notify")); !errors.Is(err, ErrRouteExists) {
		t.Errorf("Expected ErrRouteExists, got: %v", err)
	}

	// Same path for another user is fine
	if err := repo.CreateClientAPIRoute(ctx, newTestRoute(testutil.UniqueID("user"), "/notify")); err != nil {
		t.Errorf("CreateClientAPIRoute (other user) failed: %v", err)
	}
}

func TestIntegrationRoutes_ListAndDelete(t *testing.T) {
	ctx, repo := newRouteTestEnv(t)

	userID := testutil.UniqueID("user")
	first := newTestRoute(userID, "/notify")
	second := newTestRoute(userID, "/alerts")
	for _, route := range []*model.ClientAPIRoute{first, second} {
		if err := repo.CreateClientAPIRoute(ctx, route); err != nil {
			t.Fatalf("CreateClientAPIRoute failed: %v", err)
		}
	}

	routes, err := repo.ListClientAPIRoutesByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("ListClientAPIRoutesByUserID failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(routes))
	}

	if err := repo.DeleteClientAPIRoute(ctx, userID, first.ID); err != nil {
		t.Fatalf("DeleteClientAPIRoute failed: %v", err)
	}
	if _, err := repo.GetClientAPIRoute(ctx, userID, "/notify"); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("Expected ErrRouteNotFound after delete, got: %v", err)
	}
	if err := repo.DeleteClientAPIRoute(ctx, userID, first.ID); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("second delete error = %v, want ErrRouteNotFound", err)
	}
}

func newRouteTestEnv(t *testing.T) (context.Context, *Repository) {
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

	if err := testutil.ResetRoutesSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset client_api_routes schema: %v", err)
	}

	return ctx, repo
}
