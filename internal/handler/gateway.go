package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/textship/textship/internal/auth"
	"github.com/textship/textship/internal/handler/dto"
	"github.com/textship/textship/internal/service"
)

// HeaderGatewayRoute carries the original client route on forwarded
// requests.
const HeaderGatewayRoute = "X-Gateway-Route"

// GatewayHandler forwards requests on client-registered routes to
// their allow-listed internal targets. A client that registered
// /notify -> /api/v1/client/sms/send calls POST /x/notify and the
// request is re-dispatched internally against the mapped path.
type GatewayHandler struct {
	svc    *service.RouteService
	next   http.Handler
	logger *slog.Logger
}

// NewGatewayHandler creates a new GatewayHandler. The internal router
// is attached later with SetRouter since the gateway itself is mounted
// on that router.
func NewGatewayHandler(svc *service.RouteService, logger *slog.Logger) *GatewayHandler {
	return &GatewayHandler{
		svc:    svc,
		logger: logger,
	}
}

// SetRouter attaches the router that forwarded requests re-enter.
func (h *GatewayHandler) SetRouter(next http.Handler) {
	h.next = next
}

// Forward handles any method on /x/*.
func (h *GatewayHandler) Forward(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	if h.next == nil {
		h.writeError(w, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "Gateway is not ready")
		return
	}

	route := "/" + chi.URLParam(r, "*")
	if route == "/" {
		h.writeError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found")
		return
	}

	start := time.Now()

	target, err := h.svc.Resolve(r.Context(), authCtx.UserID, route)
	if err != nil {
		if errors.Is(err, service.ErrRouteNotFound) {
			h.logger.Info("gateway_route_miss",
				"route", route,
				"user_id", authCtx.UserID,
			)
			h.writeError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found")
			return
		}
		h.logger.Error("gateway_resolve_error", "route", route, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}

	h.logger.Info("gateway_forward",
		"route", route,
		"target", target,
		"user_id", authCtx.UserID,
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)

	// Re-dispatch against the mapped internal path. Auth context and
	// body travel with the original request. The clone gets a fresh
	// routing context: reusing the one from /x/* would make the router
	// match the stale RoutePath instead of the rewritten URL.
	rctx := chi.NewRouteContext()
	forwarded := r.Clone(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	forwarded.URL.Path = target
	forwarded.URL.RawPath = ""
	forwarded.RequestURI = target
	forwarded.Header.Set(HeaderGatewayRoute, route)

	h.next.ServeHTTP(w, forwarded)
}

// writeError writes a JSON error response for gateway failures.
func (h *GatewayHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=0")

	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
