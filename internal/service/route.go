package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/textship/textship/internal/model"
	"github.com/textship/textship/internal/repository"
)

// Route registration errors.
var (
	ErrInvalidRoutePath      = errors.New("route must start with / and contain no whitespace")
	ErrRouteTargetNotAllowed = errors.New("route target is not in the allow-list")
	ErrRouteExists           = errors.New("route already registered")
	ErrRouteNotFound         = errors.New("route not found")
)

// AllowedRouteTargets is the fixed set of internal operations a client
// route may map to. Targets are checked at registration; nothing
// outside this set is ever reachable through the gateway.
var AllowedRouteTargets = map[string]struct{}{
	"/api/v1/client/sms/send":      {},
	"/api/v1/client/sms/send-bulk": {},
	"/api/v1/client/otp/send":      {},
	"/api/v1/client/otp/verify":    {},
	"/api/v1/client/usage/summary": {},
	"/api/v1/client/wallet":        {},
}

const maxRouteLength = 200

// RouteRepository is the persistence surface for client routes.
type RouteRepository interface {
	CreateClientAPIRoute(ctx context.Context, route *model.ClientAPIRoute) error
	GetClientAPIRoute(ctx context.Context, userID, route string) (*model.ClientAPIRoute, error)
	ListClientAPIRoutesByUserID(ctx context.Context, userID string) ([]*model.ClientAPIRoute, error)
	DeleteClientAPIRoute(ctx context.Context, userID, id string) error
}

// RouteService manages per-client API route registrations.
type RouteService struct {
	repo RouteRepository
}

// NewRouteService creates a new RouteService.
func NewRouteService(repo RouteRepository) *RouteService {
	return &RouteService{repo: repo}
}

// RegisterRouteInput defines input for registering a client route.
type RegisterRouteInput struct {
	UserID    string
	Route     string
	MappedTo  string
	RateLimit int
}

// Register registers a client route pointing at an allow-listed
// internal target. (user, route) pairs are unique.
func (s *RouteService) Register(ctx context.Context, input RegisterRouteInput) (*model.ClientAPIRoute, error) {
	route := strings.TrimSpace(input.Route)
	if !strings.HasPrefix(route, "/") || len(route) > maxRouteLength || strings.ContainsAny(route, " \t\n") {
		return nil, ErrInvalidRoutePath
	}
	if _, ok := AllowedRouteTargets[input.MappedTo]; !ok {
		return nil, ErrRouteTargetNotAllowed
	}

	rateLimit := input.RateLimit
	if rateLimit < 0 {
		rateLimit = 0
	}

	now := time.Now().UTC()
	record := &model.ClientAPIRoute{
		ID:        ulid.Make().String(),
		UserID:    input.UserID,
		Route:     route,
		MappedTo:  input.MappedTo,
		RateLimit: rateLimit,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateClientAPIRoute(ctx, record); err != nil {
		if errors.Is(err, repository.ErrRouteExists) {
			return nil, ErrRouteExists
		}
		return nil, fmt.Errorf("failed to register route: %w", err)
	}

	return record, nil
}

// Resolve maps a registered client route to its internal target.
func (s *RouteService) Resolve(ctx context.Context, userID, route string) (string, error) {
	record, err := s.repo.GetClientAPIRoute(ctx, userID, route)
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return "", ErrRouteNotFound
		}
		return "", err
	}
	// Registration enforces the allow-list; a stale row outside it is
	// treated as unregistered.
	if _, ok := AllowedRouteTargets[record.MappedTo]; !ok {
		return "", ErrRouteNotFound
	}
	return record.MappedTo, nil
}

// ListByUser retrieves all routes registered by a user.
func (s *RouteService) ListByUser(ctx context.Context, userID string) ([]*model.ClientAPIRoute, error) {
	return s.repo.ListClientAPIRoutesByUserID(ctx, userID)
}

// Delete removes a registered route.
func (s *RouteService) Delete(ctx context.Context, userID, id string) error {
	err := s.repo.DeleteClientAPIRoute(ctx, userID, id)
	if errors.Is(err, repository.ErrRouteNotFound) {
		return ErrRouteNotFound
	}
	return err
}
