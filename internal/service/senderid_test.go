package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/textship/textship/internal/cache"
	"github.com/textship/textship/internal/model"
	"github.com/textship/textship/internal/repository"
)

// fakeSenderIDRepo keeps records in memory keyed by ID.
type fakeSenderIDRepo struct {
	mu      sync.Mutex
	records map[string]*model.SenderID
}

func newFakeSenderIDRepo() *fakeSenderIDRepo {
	return &fakeSenderIDRepo{records: map[string]*model.SenderID{}}
}

func (f *fakeSenderIDRepo) CreateSenderID(_ context.Context, s *model.SenderID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.UserID == s.UserID && existing.Value == s.Value {
			return repository.ErrSenderIDExists
		}
	}
	clone := *s
	f.records[s.ID] = &clone
	return nil
}

func (f *fakeSenderIDRepo) GetSenderIDByID(_ context.Context, id string) (*model.SenderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, repository.ErrSenderIDNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeSenderIDRepo) GetSenderIDByValueAndUser(_ context.Context, value, userID string) (*model.SenderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.records {
		if record.UserID == userID && record.Value == value {
			clone := *record
			return &clone, nil
		}
	}
	return nil, repository.ErrSenderIDNotFound
}

func (f *fakeSenderIDRepo) ListSenderIDsByUserID(_ context.Context, userID string) ([]*model.SenderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.SenderID
	for _, record := range f.records {
		if record.UserID == userID {
			clone := *record
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeSenderIDRepo) ResolveSenderID(_ context.Context, id string, status model.SenderIDStatus, adminUserID, notes string, decidedAt time.Time) (*model.SenderID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.records[id]
	if !ok {
		return nil, repository.ErrSenderIDNotFound
	}
	if record.Status != model.SenderIDPending {
		return nil, repository.ErrSenderIDResolved
	}
	record.Status = status
	record.AdminNotes = notes
	record.ApprovedByUserID = &adminUserID
	if status == model.SenderIDApproved {
		record.ApprovedAt = &decidedAt
	} else {
		record.RejectedAt = &decidedAt
	}
	record.UpdatedAt = decidedAt
	clone := *record
	return &clone, nil
}

// fakeStatusCache is an in-memory SenderStatusCache.
type fakeStatusCache struct {
	mu      sync.Mutex
	entries map[string]model.SenderIDStatus
	hits    int
	sets    int
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{entries: map[string]model.SenderIDStatus{}}
}

func (f *fakeStatusCache) GetSenderIDStatus(_ context.Context, userID, value string) (model.SenderIDStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.entries[userID+":"+value]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	f.hits++
	return status, nil
}

func (f *fakeStatusCache) SetSenderIDStatus(_ context.Context, userID, value string, status model.SenderIDStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[userID+":"+value] = status
	f.sets++
	return nil
}

func (f *fakeStatusCache) InvalidateSenderID(_ context.Context, userID, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, userID+":"+value)
	return nil
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	svc := NewSenderIDService(newFakeSenderIDRepo(), nil, nil)

	tests := []struct {
		name    string
		input   SubmitInput
		wantErr error
	}{
		{"empty value", SubmitInput{UserID: "user-1", Value: ""}, ErrSenderIDMissing},
		{"too short", SubmitInput{UserID: "user-1", Value: "AB"}, ErrSenderIDInvalidFormat},
		{"too long", SubmitInput{UserID: "user-1", Value: "TWELVECHARSX"}, ErrSenderIDInvalidFormat},
		{"space", SubmitInput{UserID: "user-1", Value: "ACME CORP"}, ErrSenderIDInvalidFormat},
		{"hyphen", SubmitInput{UserID: "user-1", Value: "ACME-1"}, ErrSenderIDInvalidFormat},
		{"unicode", SubmitInput{UserID: "user-1", Value: "ACMÉ"}, ErrSenderIDInvalidFormat},
		{"oversized purpose", SubmitInput{UserID: "user-1", Value: "ACMECORP", Purpose: strings.Repeat("p", 501)}, ErrSenderIDInvalidFormat},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Submit(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Submit() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubmitStartsPending(t *testing.T) {
	t.Parallel()

	repo := newFakeSenderIDRepo()
	svc := NewSenderIDService(repo, nil, nil)

	record, err := svc.Submit(context.Background(), SubmitInput{
		UserID: "user-1", Value: "NEWTEST456", Purpose: "order updates",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if record.Status != model.SenderIDPending {
		t.Errorf("Status = %q, want PENDING", record.Status)
	}
	if record.ID == "" {
		t.Error("ID should be assigned")
	}

	// Duplicate (user, value) pair is rejected
	_, err = svc.Submit(context.Background(), SubmitInput{UserID: "user-1", Value: "NEWTEST456"})
	if !errors.Is(err, ErrSenderIDExists) {
		t.Errorf("duplicate Submit() error = %v, want ErrSenderIDExists", err)
	}

	// Same value is fine for another user
	if _, err := svc.Submit(context.Background(), SubmitInput{UserID: "user-2", Value: "NEWTEST456"}); err != nil {
		t.Errorf("other-user Submit() error = %v", err)
	}
}

func TestResolveTransitions(t *testing.T) {
	t.Parallel()

	repo := newFakeSenderIDRepo()
	statusCache := newFakeStatusCache()
	svc := NewSenderIDService(repo, statusCache, nil)

	record, err := svc.Submit(context.Background(), SubmitInput{UserID: "user-1", Value: "ACMECORP"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Invalid target statuses are rejected before touching the repo
	for _, status := range []model.SenderIDStatus{model.SenderIDPending, "BOGUS", ""} {
		if _, err := svc.Resolve(context.Background(), ResolveInput{ID: record.ID, Status: status, AdminUserID: "admin-1"}); !errors.Is(err, ErrInvalidDecision) {
			t.Errorf("Resolve(%q) error = %v, want ErrInvalidDecision", status, err)
		}
	}

	approved, err := svc.Resolve(context.Background(), ResolveInput{
		ID: record.ID, Status: model.SenderIDApproved, AdminUserID: "admin-1", Notes: "looks good",
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if approved.Status != model.SenderIDApproved || approved.ApprovedAt == nil {
		t.Errorf("approved record = %+v", approved)
	}

	// Second decision conflicts, in either direction
	for _, status := range []model.SenderIDStatus{model.SenderIDApproved, model.SenderIDRejected} {
		if _, err := svc.Resolve(context.Background(), ResolveInput{ID: record.ID, Status: status, AdminUserID: "admin-1"}); !errors.Is(err, ErrSenderIDConflict) {
			t.Errorf("second Resolve(%q) error = %v, want ErrSenderIDConflict", status, err)
		}
	}

	// Unknown ID
	if _, err := svc.Resolve(context.Background(), ResolveInput{ID: "01JUNKJUNKJUNKJUNKJUNKJUNK", Status: model.SenderIDApproved, AdminUserID: "admin-1"}); !errors.Is(err, ErrSenderIDNotFound) {
		t.Errorf("Resolve(unknown) error = %v, want ErrSenderIDNotFound", err)
	}
}

func TestResolveConcurrentSingleWinner(t *testing.T) {
	t.Parallel()

	repo := newFakeSenderIDRepo()
	svc := NewSenderIDService(repo, nil, nil)

	record, err := svc.Submit(context.Background(), SubmitInput{UserID: "user-1", Value: "ACMECORP"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		status := model.SenderIDApproved
		if i%2 == 1 {
			status = model.SenderIDRejected
		}
		wg.Add(1)
		go func(status model.SenderIDStatus) {
			defer wg.Done()
			_, err := svc.Resolve(context.Background(), ResolveInput{ID: record.ID, Status: status, AdminUserID: "admin-1"})
			results <- err
		}(status)
	}
	wg.Wait()
	close(results)

	var won, conflicted int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSenderIDConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || conflicted != workers-1 {
		t.Errorf("won/conflicted = %d/%d, want 1/%d", won, conflicted, workers-1)
	}
}

func TestIsApprovedSender(t *testing.T) {
	t.Parallel()

	repo := newFakeSenderIDRepo()
	statusCache := newFakeStatusCache()
	svc := NewSenderIDService(repo, statusCache, nil)

	record, err := svc.Submit(context.Background(), SubmitInput{UserID: "user-1", Value: "ACMECORP"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// Pending is not approved, and the lookup backfills the cache
	ok, err := svc.IsApprovedSender(context.Background(), "user-1", "ACMECORP")
	if err != nil || ok {
		t.Fatalf("pending IsApprovedSender = %v, %v; want false, nil", ok, err)
	}
	if statusCache.sets != 1 {
		t.Errorf("cache sets = %d, want 1 (backfill)", statusCache.sets)
	}

	// Approval invalidates the stale cached PENDING entry
	if _, err := svc.Resolve(context.Background(), ResolveInput{ID: record.ID, Status: model.SenderIDApproved, AdminUserID: "admin-1"}); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	ok, err = svc.IsApprovedSender(context.Background(), "user-1", "ACMECORP")
	if err != nil || !ok {
		t.Fatalf("approved IsApprovedSender = %v, %v; want true, nil", ok, err)
	}

	// Second check is served from cache
	before := statusCache.hits
	if ok, _ := svc.IsApprovedSender(context.Background(), "user-1", "ACMECORP"); !ok {
		t.Error("cached IsApprovedSender = false, want true")
	}
	if statusCache.hits != before+1 {
		t.Errorf("cache hits = %d, want %d", statusCache.hits, before+1)
	}

	// Unknown sender is false without error
	ok, err = svc.IsApprovedSender(context.Background(), "user-1", "NOSUCHONE")
	if err != nil || ok {
		t.Errorf("unknown IsApprovedSender = %v, %v; want false, nil", ok, err)
	}
}
