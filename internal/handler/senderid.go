package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/textship/textship/internal/auth"
	"github.com/textship/textship/internal/handler/dto"
	"github.com/textship/textship/internal/model"
	"github.com/textship/textship/internal/service"
)

// SenderIDHandler handles HTTP requests for sender ID operations.
type SenderIDHandler struct {
	svc    *service.SenderIDService
	logger *slog.Logger
}

// NewSenderIDHandler creates a new SenderIDHandler.
func NewSenderIDHandler(svc *service.SenderIDService, logger *slog.Logger) *SenderIDHandler {
	return &SenderIDHandler{
		svc:    svc,
		logger: logger,
	}
}

// Submit handles POST /api/v1/sender-ids.
func (h *SenderIDHandler) Submit(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.SubmitSenderIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	record, err := h.svc.Submit(r.Context(), service.SubmitInput{
		UserID:        authCtx.UserID,
		Value:         req.SenderID,
		Purpose:       req.Purpose,
		SampleMessage: req.SampleMessage,
		CompanyName:   req.CompanyName,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("sender_id_submitted",
		"sender_id_id", record.ID,
		"user_id", record.UserID,
	)

	writeJSON(w, http.StatusCreated, dto.ToSenderIDResponse(record))
}

// List handles GET /api/v1/sender-ids.
func (h *SenderIDHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	records, err := h.svc.ListByUser(r.Context(), authCtx.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSenderIDListResponse(records))
}

// Get handles GET /api/v1/sender-ids/{id}.
func (h *SenderIDHandler) Get(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Sender ID is required")
		return
	}

	record, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	// Owners and admins only; everyone else gets the not-found shape
	// so record IDs cannot be enumerated.
	if record.UserID != authCtx.UserID && !authCtx.HasScope(model.ScopeAdmin) {
		h.writeError(w, http.StatusNotFound, "SENDER_ID_NOT_FOUND", "Sender ID not found")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSenderIDResponse(record))
}

// SetStatus handles PUT /api/v1/admin/sender-ids/{id}/status (admin only).
func (h *SenderIDHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_ID", "Sender ID is required")
		return
	}

	var req dto.ResolveSenderIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	record, err := h.svc.Resolve(r.Context(), service.ResolveInput{
		ID:          id,
		Status:      model.SenderIDStatus(req.Status),
		AdminUserID: authCtx.UserID,
		Notes:       req.Notes,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("sender_id_resolved",
		"sender_id_id", record.ID,
		"status", string(record.Status),
		"admin_user_id", authCtx.UserID,
	)

	writeJSON(w, http.StatusOK, dto.ToSenderIDResponse(record))
}

// handleServiceError maps service errors to HTTP responses.
func (h *SenderIDHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSenderIDMissing):
		h.writeError(w, http.StatusBadRequest, "MISSING_SENDER_ID", "Sender ID is required")
	case errors.Is(err, service.ErrSenderIDInvalidFormat):
		h.writeError(w, http.StatusBadRequest, "INVALID_SENDER_ID_FORMAT", "Sender ID must be 3-11 alphanumeric characters")
	case errors.Is(err, service.ErrSenderIDExists):
		h.writeError(w, http.StatusConflict, "SENDER_ID_EXISTS", "Sender ID already submitted for this account")
	case errors.Is(err, service.ErrSenderIDNotFound):
		h.writeError(w, http.StatusNotFound, "SENDER_ID_NOT_FOUND", "Sender ID not found")
	case errors.Is(err, service.ErrSenderIDConflict):
		h.writeError(w, http.StatusConflict, "SENDER_ID_ALREADY_RESOLVED", "Sender ID has already been approved or rejected")
	case errors.Is(err, service.ErrInvalidDecision):
		h.writeError(w, http.StatusBadRequest, "INVALID_DECISION", "Status must be APPROVED or REJECTED")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *SenderIDHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
