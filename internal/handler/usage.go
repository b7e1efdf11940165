package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/textship/textship/internal/auth"
	"github.com/textship/textship/internal/handler/dto"
	"github.com/textship/textship/internal/repository"
)

// UsageHandler handles usage reporting API requests.
type UsageHandler struct {
	repo   *repository.UsageRepository
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(repo *repository.UsageRepository, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		repo:   repo,
		logger: logger.With("component", "handler.usage"),
	}
}

// Summary handles GET /api/v1/client/usage/summary.
func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	from, to := h.parseTimeRange(r)

	summary, err := h.repo.SummarizeByUser(r.Context(), authCtx.UserID, from, to)
	if err != nil {
		h.logger.Error("failed to summarize usage", "user_id", authCtx.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch usage summary")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUsageSummaryResponse(summary))
}

// Recent handles GET /api/v1/client/usage/recent.
func (h *UsageHandler) Recent(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	records, err := h.repo.ListRecentByUser(r.Context(), authCtx.UserID, limit)
	if err != nil {
		h.logger.Error("failed to list usage records", "user_id", authCtx.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch usage records")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecentUsageResponse(records))
}

// parseTimeRange extracts from/to dates from query params. The window
// defaults to the last 30 days and is capped at 90.
func (h *UsageHandler) parseTimeRange(r *http.Request) (time.Time, time.Time) {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		if parsed, err := time.Parse("2006-01-02", fromStr); err == nil {
			from = parsed
		}
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		if parsed, err := time.Parse("2006-01-02", toStr); err == nil {
			// Include the whole named day.
			to = parsed.AddDate(0, 0, 1)
		}
	}

	if to.Sub(from) > 90*24*time.Hour {
		from = to.AddDate(0, 0, -90)
	}
	if to.After(now) {
		to = now
	}

	return from, to
}

// writeError writes a JSON error response.
func (h *UsageHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
