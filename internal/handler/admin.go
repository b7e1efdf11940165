package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/textship/textship/internal/handler/dto"
	"github.com/textship/textship/internal/model"
)

// AdminSenderIDSearcher defines the interface for sender ID review queries.
type AdminSenderIDSearcher interface {
	ListSenderIDsByStatus(ctx context.Context, status model.SenderIDStatus) ([]*model.SenderID, error)
	ListSenderIDsByUserID(ctx context.Context, userID string) ([]*model.SenderID, error)
}

// AdminKeyLister defines the interface for listing API keys.
type AdminKeyLister interface {
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
}

// AdminHandler provides admin-only endpoints for debugging and operations.
type AdminHandler struct {
	senderRepo AdminSenderIDSearcher
	keyRepo    AdminKeyLister
	logger     *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(senderRepo AdminSenderIDSearcher, keyRepo AdminKeyLister, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		senderRepo: senderRepo,
		keyRepo:    keyRepo,
		logger:     logger,
	}
}

// LookupSenderIDs handles GET /api/v1/admin/sender-ids?status={status}&user_id={id}
// Lists sender ID submissions for review, filtered by status or owner.
func (h *AdminHandler) LookupSenderIDs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	userID := r.URL.Query().Get("user_id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		records []*model.SenderID
		err     error
	)

	switch {
	case userID != "":
		records, err = h.senderRepo.ListSenderIDsByUserID(ctx, userID)
	case status != "":
		parsed := model.SenderIDStatus(status)
		if !parsed.IsValid() {
			writeErrorJSON(w, http.StatusBadRequest, "INVALID_STATUS", "status must be PENDING, APPROVED or REJECTED")
			return
		}
		records, err = h.senderRepo.ListSenderIDsByStatus(ctx, parsed)
	default:
		records, err = h.senderRepo.ListSenderIDsByStatus(ctx, model.SenderIDPending)
	}
	if err != nil {
		h.logger.Error("failed to list sender IDs",
			"error", err,
			"status", status,
			"user_id", userID,
		)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list sender IDs")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSenderIDListResponse(records))
}

// AdminAPIKeyListResponse represents the response for API key listing.
type AdminAPIKeyListResponse struct {
	Keys  []model.APIKeyResponse `json:"keys"`
	Total int                    `json:"total"`
}

// ListAPIKeysByUser handles GET /api/v1/admin/api-keys?user_id={id}
// Lists all API keys for a specific user (admin only).
func (h *AdminHandler) ListAPIKeysByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeErrorJSON(w, http.StatusBadRequest, "MISSING_USER_ID", "query parameter 'user_id' is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	keys, err := h.keyRepo.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list API keys",
			"error", err,
			"user_id", userID,
		)
		writeErrorJSON(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list API keys")
		return
	}

	response := AdminAPIKeyListResponse{
		Keys:  make([]model.APIKeyResponse, 0, len(keys)),
		Total: len(keys),
	}

	for _, key := range keys {
		response.Keys = append(response.Keys, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, response)
}

// StatsResponse represents operational statistics.
type StatsResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime,omitempty"`
}

// Stats handles GET /api/v1/admin/stats
// Returns basic operational statistics.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		Timestamp: time.Now().UTC(),
		Service:   "textship",
		Version:   "1.0.0", // TODO: inject at build time
	}
	writeJSON(w, http.StatusOK, response)
}

// writeErrorJSON writes a JSON error response.
func writeErrorJSON(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}
