package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/textship/textship/internal/auth"
	"github.com/textship/textship/internal/handler/dto"
	"github.com/textship/textship/internal/middleware"
	"github.com/textship/textship/internal/service"
)

// SMSHandler handles HTTP requests for SMS dispatch.
type SMSHandler struct {
	svc    *service.DispatchService
	logger *slog.Logger
}

// NewSMSHandler creates a new SMSHandler.
func NewSMSHandler(svc *service.DispatchService, logger *slog.Logger) *SMSHandler {
	return &SMSHandler{
		svc:    svc,
		logger: logger,
	}
}

// Send handles POST /api/v1/client/sms/send.
func (h *SMSHandler) Send(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.SendSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := middleware.ValidatePhone(req.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_RECIPIENT", "Recipient must be a valid phone number")
		return
	}
	if err := middleware.ValidateMessage(req.Message); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_MESSAGE", "Message is empty or too long")
		return
	}

	start := time.Now()
	out, err := h.svc.Send(r.Context(), service.SendInput{
		UserID:  authCtx.UserID,
		To:      req.To,
		From:    req.From,
		Message: req.Message,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("sms_dispatched",
		"message_id", out.MessageID,
		"user_id", authCtx.UserID,
		"segments", out.Segments,
		"cost_micro", out.CostMicro,
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)

	writeJSON(w, http.StatusOK, dto.SendSMSResponse{
		MessageID: out.MessageID,
		To:        out.To,
		From:      out.From,
		Status:    "sent",
		Segments:  out.Segments,
		CostMicro: out.CostMicro,
	})
}

// SendBulk handles POST /api/v1/client/sms/send-bulk.
func (h *SMSHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.SendBulkSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	for _, to := range req.To {
		if err := middleware.ValidatePhone(to); err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_RECIPIENT", "Recipient "+to+" is not a valid phone number")
			return
		}
	}
	if err := middleware.ValidateMessage(req.Message); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_MESSAGE", "Message is empty or too long")
		return
	}

	out, err := h.svc.SendBulk(r.Context(), service.SendBulkInput{
		UserID:  authCtx.UserID,
		To:      req.To,
		From:    req.From,
		Message: req.Message,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("sms_bulk_dispatched",
		"user_id", authCtx.UserID,
		"recipients", len(req.To),
		"sent", out.SentCount,
		"cost_micro", out.CostMicro,
	)

	results := make([]dto.BulkRecipientResponse, len(out.Results))
	for i, res := range out.Results {
		results[i] = dto.BulkRecipientResponse{
			To:        res.To,
			MessageID: res.MessageID,
			Sent:      res.Sent,
			Error:     res.Error,
		}
	}

	writeJSON(w, http.StatusOK, dto.SendBulkSMSResponse{
		Results:   results,
		SentCount: out.SentCount,
		Segments:  out.Segments,
		CostMicro: out.CostMicro,
	})
}

// handleServiceError maps dispatch errors to HTTP responses. The
// precondition chain runs in a fixed order, so the first failing check
// determines the code.
func (h *SMSHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNoRecipients):
		h.writeError(w, http.StatusBadRequest, "MISSING_RECIPIENT", "At least one recipient is required")
	case errors.Is(err, service.ErrTooManyRecipients):
		h.writeError(w, http.StatusBadRequest, "TOO_MANY_RECIPIENTS", "Recipient count exceeds the bulk limit")
	case errors.Is(err, service.ErrEmptyMessage):
		h.writeError(w, http.StatusBadRequest, "INVALID_MESSAGE", "Message body is required")
	case errors.Is(err, service.ErrSenderIDMissing):
		h.writeError(w, http.StatusBadRequest, "MISSING_SENDER_ID", "Sender ID is required")
	case errors.Is(err, service.ErrSenderIDInvalidFormat):
		h.writeError(w, http.StatusBadRequest, "INVALID_SENDER_ID_FORMAT", "Sender ID format is invalid")
	case errors.Is(err, service.ErrSenderIDNotApproved):
		h.writeError(w, http.StatusForbidden, "INVALID_SENDER_ID", "Sender ID is not approved for this account")
	case errors.Is(err, service.ErrInsufficientBalance):
		h.writeError(w, http.StatusBadRequest, "INSUFFICIENT_BALANCE", "Wallet balance is too low for this dispatch")
	case errors.Is(err, service.ErrUpstreamTimeout):
		h.writeError(w, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Upstream provider timed out")
	case errors.Is(err, service.ErrUpstreamRejected):
		h.writeError(w, http.StatusBadGateway, "UPSTREAM_REJECTED", "Upstream provider rejected the message")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *SMSHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
