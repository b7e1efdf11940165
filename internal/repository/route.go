package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/textship/textship/internal/model"
)

// Common errors for client API route operations.
var (
	ErrRouteNotFound = errors.New("client API route not found")
	// ErrRouteExists means the (user_id, route) pair is already taken.
	ErrRouteExists = errors.New("client API route already registered")
)

// CreateClientAPIRoute inserts a new client route mapping.
// The (user_id, route) pair is enforced unique at the database level.
func (r *Repository) CreateClientAPIRoute(ctx context.Context, route *model.ClientAPIRoute) error {
	query := `
		INSERT INTO client_api_routes (id, user_id, route, mapped_to, rate_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		route.ID,
		route.UserID,
		route.Route,
		route.MappedTo,
		route.RateLimit,
		route.CreatedAt,
		route.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrRouteExists
		}
		return fmt.Errorf("failed to create client API route: %w", err)
	}

	return nil
}

// GetClientAPIRoute resolves a client's registered route.
// Used by the gateway to map an inbound path to an internal target.
func (r *Repository) GetClientAPIRoute(ctx context.Context, userID, route string) (*model.ClientAPIRoute, error) {
	query := `
		SELECT id, user_id, route, mapped_to, rate_limit, created_at, updated_at
		FROM client_api_routes
		WHERE user_id = $1 AND route = $2
	`

	var m model.ClientAPIRoute
	err := r.pool.QueryRow(ctx, query, userID, route).Scan(
		&m.ID,
		&m.UserID,
		&m.Route,
		&m.MappedTo,
		&m.RateLimit,
		&m.CreatedAt,
		&m.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to get client API route: %w", err)
	}

	return &m, nil
}

// ListClientAPIRoutesByUserID retrieves all routes registered by a user.
func (r *Repository) ListClientAPIRoutesByUserID(ctx context.Context, userID string) ([]*model.ClientAPIRoute, error) {
	query := `
		SELECT id, user_id, route, mapped_to, rate_limit, created_at, updated_at
		FROM client_api_routes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client API routes: %w", err)
	}
	defer rows.Close()

	var routes []*model.ClientAPIRoute
	for rows.Next() {
		var m model.ClientAPIRoute
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.Route,
			&m.MappedTo,
			&m.RateLimit,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client API route: %w", err)
		}
		routes = append(routes, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating client API routes: %w", err)
	}

	return routes, nil
}

// DeleteClientAPIRoute removes a route registration.
func (r *Repository) DeleteClientAPIRoute(ctx context.Context, userID, id string) error {
	query := `DELETE FROM client_api_routes WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete client API route: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRouteNotFound
	}

	return nil
}
