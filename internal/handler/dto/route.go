package dto

import (
	"time"

	"github.com/textship/textship/internal/model"
)

// CreateRouteRequest represents the request body for registering a
// client API route.
type CreateRouteRequest struct {
	Route     string `json:"route"`
	MappedTo  string `json:"mapped_to"`
	RateLimit int    `json:"rate_limit,omitempty"`
}

// RouteResponse represents a client API route in API responses.
type RouteResponse struct {
	ID        string    `json:"id"`
	Route     string    `json:"route"`
	MappedTo  string    `json:"mapped_to"`
	RateLimit int       `json:"rate_limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RouteListResponse represents a list of client API routes.
type RouteListResponse struct {
	Data  []RouteResponse `json:"data"`
	Total int             `json:"total"`
}

// ToRouteResponse converts a ClientAPIRoute model to its response DTO.
func ToRouteResponse(route *model.ClientAPIRoute) *RouteResponse {
	return &RouteResponse{
		ID:        route.ID,
		Route:     route.Route,
		MappedTo:  route.MappedTo,
		RateLimit: route.RateLimit,
		CreatedAt: route.CreatedAt,
		UpdatedAt: route.UpdatedAt,
	}
}

// ToRouteListResponse converts a slice of ClientAPIRoute models.
func ToRouteListResponse(routes []*model.ClientAPIRoute) *RouteListResponse {
	responses := make([]RouteResponse, len(routes))
	for i, route := range routes {
		responses[i] = *ToRouteResponse(route)
	}
	return &RouteListResponse{
		Data:  responses,
		Total: len(responses),
	}
}
