package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/textship/textship/internal/auth"
	"github.com/textship/textship/internal/handler/dto"
	"github.com/textship/textship/internal/middleware"
	"github.com/textship/textship/internal/service"
)

// RouteHandler handles HTTP requests for client API route management.
type RouteHandler struct {
	svc    *service.RouteService
	logger *slog.Logger
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(svc *service.RouteService, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{
		svc:    svc,
		logger: logger,
	}
}

// Create handles POST /api/v1/client/routes.
func (h *RouteHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.CreateRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := middleware.ValidateRoutePath(req.Route); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_ROUTE", "Route path is invalid")
		return
	}

	route, err := h.svc.Register(r.Context(), service.RegisterRouteInput{
		UserID:    authCtx.UserID,
		Route:     req.Route,
		MappedTo:  req.MappedTo,
		RateLimit: req.RateLimit,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("route_registered",
		"route_id", route.ID,
		"user_id", route.UserID,
		"mapped_to", route.MappedTo,
	)

	writeJSON(w, http.StatusCreated, dto.ToRouteResponse(route))
}

// List handles GET /api/v1/client/routes.
func (h *RouteHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	routes, err := h.svc.ListByUser(r.Context(), authCtx.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRouteListResponse(routes))
}

// Delete handles DELETE /api/v1/client/routes/{id}.
func (h *RouteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Route ID is required")
		return
	}

	if err := h.svc.Delete(r.Context(), authCtx.UserID, id); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("route_deleted", "route_id", id, "user_id", authCtx.UserID)

	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps route errors to HTTP responses.
func (h *RouteHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidRoutePath):
		h.writeError(w, http.StatusBadRequest, "INVALID_ROUTE", "Route must start with / and contain no whitespace")
	case errors.Is(err, service.ErrRouteTargetNotAllowed):
		h.writeError(w, http.StatusBadRequest, "TARGET_NOT_ALLOWED", "Route target is not in the allow-list")
	case errors.Is(err, service.ErrRouteExists):
		h.writeError(w, http.StatusConflict, "ROUTE_EXISTS", "Route already registered for this account")
	case errors.Is(err, service.ErrRouteNotFound):
		h.writeError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *RouteHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
