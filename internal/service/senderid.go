// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/textship/textship/internal/metrics"
	"github.com/textship/textship/internal/model"
	"github.com/textship/textship/internal/repository"
	"github.com/textship/textship/internal/senderid"
)

// Sender-ID workflow errors.
var (
	ErrSenderIDMissing       = errors.New("sender ID is required")
	ErrSenderIDInvalidFormat = errors.New("sender ID format is invalid")
	ErrSenderIDExists        = errors.New("sender ID already submitted")
	ErrSenderIDNotFound      = errors.New("sender ID not found")
	// ErrSenderIDConflict means the record already carries a terminal
	// status and cannot be resolved again.
	ErrSenderIDConflict = errors.New("sender ID already resolved")
	ErrInvalidDecision  = errors.New("decision must be APPROVED or REJECTED")
)

const (
	maxPurposeLength       = 500
	maxSampleMessageLength = 1000
	maxCompanyNameLength   = 200
	maxAdminNotesLength    = 1000
)

// SenderIDRepository is the persistence surface the workflow needs.
type SenderIDRepository interface {
	CreateSenderID(ctx context.Context, s *model.SenderID) error
	GetSenderIDByID(ctx context.Context, id string) (*model.SenderID, error)
	GetSenderIDByValueAndUser(ctx context.Context, value, userID string) (*model.SenderID, error)
	ListSenderIDsByUserID(ctx context.Context, userID string) ([]*model.SenderID, error)
	ResolveSenderID(ctx context.Context, id string, status model.SenderIDStatus, adminUserID, notes string, decidedAt time.Time) (*model.SenderID, error)
}

// SenderStatusCache caches (user, sender) statuses for the dispatch hot path.
type SenderStatusCache interface {
	GetSenderIDStatus(ctx context.Context, userID, value string) (model.SenderIDStatus, error)
	SetSenderIDStatus(ctx context.Context, userID, value string, status model.SenderIDStatus) error
	InvalidateSenderID(ctx context.Context, userID, value string) error
}

// SenderIDService handles sender-ID registration and the approval workflow.
type SenderIDService struct {
	repo    SenderIDRepository
	cache   SenderStatusCache
	metrics metrics.Recorder
}

// NewSenderIDService creates a new SenderIDService. cache may be nil.
func NewSenderIDService(repo SenderIDRepository, statusCache SenderStatusCache, recorder metrics.Recorder) *SenderIDService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &SenderIDService{
		repo:    repo,
		cache:   statusCache,
		metrics: recorder,
	}
}

// SubmitInput defines input for registering a sender ID.
type SubmitInput struct {
	UserID        string
	Value         string
	Purpose       string
	SampleMessage string
	CompanyName   string
}

// Submit registers a new sender ID for review. New submissions always
// start PENDING; approval is a separate admin decision.
func (s *SenderIDService) Submit(ctx context.Context, input SubmitInput) (*model.SenderID, error) {
	switch senderid.Validate(input.Value) {
	case senderid.Missing:
		return nil, ErrSenderIDMissing
	case senderid.InvalidFormat:
		return nil, ErrSenderIDInvalidFormat
	}

	if len(input.Purpose) > maxPurposeLength ||
		len(input.SampleMessage) > maxSampleMessageLength ||
		len(input.CompanyName) > maxCompanyNameLength {
		return nil, ErrSenderIDInvalidFormat
	}

	now := time.Now().UTC()
	record := &model.SenderID{
		ID:            ulid.Make().String(),
		UserID:        input.UserID,
		Value:         input.Value,
		Status:        model.SenderIDPending,
		Purpose:       input.Purpose,
		SampleMessage: input.SampleMessage,
		CompanyName:   input.CompanyName,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateSenderID(ctx, record); err != nil {
		if errors.Is(err, repository.ErrSenderIDExists) {
			return nil, ErrSenderIDExists
		}
		return nil, fmt.Errorf("failed to create sender ID: %w", err)
	}

	s.metrics.IncSenderIDSubmitted()

	return record, nil
}

// ResolveInput defines input for an admin decision.
type ResolveInput struct {
	ID          string
	Status      model.SenderIDStatus
	AdminUserID string
	Notes       string
}

// Resolve applies an admin decision to a pending submission. Only
// PENDING records can transition; a second decision on the same record
// returns ErrSenderIDConflict regardless of direction.
func (s *SenderIDService) Resolve(ctx context.Context, input ResolveInput) (*model.SenderID, error) {
	if !input.Status.IsTerminal() {
		return nil, ErrInvalidDecision
	}
	if len(input.Notes) > maxAdminNotesLength {
		return nil, ErrInvalidDecision
	}

	record, err := s.repo.ResolveSenderID(ctx, input.ID, input.Status, input.AdminUserID, input.Notes, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSenderIDNotFound):
			return nil, ErrSenderIDNotFound
		case errors.Is(err, repository.ErrSenderIDResolved):
			return nil, ErrSenderIDConflict
		}
		return nil, fmt.Errorf("failed to resolve sender ID: %w", err)
	}

	s.metrics.IncSenderIDResolved(string(input.Status))

	// The decision must become visible to dispatch immediately.
	if s.cache != nil {
		_ = s.cache.InvalidateSenderID(ctx, record.UserID, record.Value)
	}

	return record, nil
}

// Get retrieves a sender ID record by ID.
func (s *SenderIDService) Get(ctx context.Context, id string) (*model.SenderID, error) {
	record, err := s.repo.GetSenderIDByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSenderIDNotFound) {
			return nil, ErrSenderIDNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListByUser retrieves all sender IDs registered by a user.
func (s *SenderIDService) ListByUser(ctx context.Context, userID string) ([]*model.SenderID, error) {
	return s.repo.ListSenderIDsByUserID(ctx, userID)
}

// IsApprovedSender reports whether a sender ID is registered to the
// user and APPROVED. Cache-first; a miss falls back to Postgres and
// backfills the cache. PENDING and REJECTED both answer false.
func (s *SenderIDService) IsApprovedSender(ctx context.Context, userID, value string) (bool, error) {
	if s.cache != nil {
		status, err := s.cache.GetSenderIDStatus(ctx, userID, value)
		if err == nil {
			s.metrics.IncSenderCacheHit()
			return status == model.SenderIDApproved, nil
		}
		// Misses and Redis errors both fall through to the DB read.
		s.metrics.IncSenderCacheMiss()
	}

	record, err := s.repo.GetSenderIDByValueAndUser(ctx, value, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSenderIDNotFound) {
			return false, nil
		}
		return false, err
	}

	if s.cache != nil {
		_ = s.cache.SetSenderIDStatus(ctx, userID, value, record.Status)
	}

	return record.IsApproved(), nil
}
