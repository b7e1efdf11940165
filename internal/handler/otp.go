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

// OTPHandler handles HTTP requests for one-time password operations.
type OTPHandler struct {
	svc    *service.OTPService
	logger *slog.Logger
}

// NewOTPHandler creates a new OTPHandler.
func NewOTPHandler(svc *service.OTPService, logger *slog.Logger) *OTPHandler {
	return &OTPHandler{
		svc:    svc,
		logger: logger,
	}
}

// Send handles POST /api/v1/client/otp/send.
func (h *OTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if err := middleware.ValidatePhone(req.To); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_RECIPIENT", "Recipient must be a valid phone number")
		return
	}

	out, err := h.svc.Issue(r.Context(), service.IssueInput{
		UserID: authCtx.UserID,
		To:     req.To,
		From:   req.From,
		Length: req.Length,
		TTL:    time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("otp_issued",
		"message_id", out.MessageID,
		"user_id", authCtx.UserID,
	)

	writeJSON(w, http.StatusOK, dto.SendOTPResponse{
		MessageID: out.MessageID,
		ExpiresAt: out.ExpiresAt,
		CostMicro: out.CostMicro,
	})
}

// Verify handles POST /api/v1/client/otp/verify.
func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req dto.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.To == "" || req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Recipient and code are required")
		return
	}

	if err := h.svc.Verify(r.Context(), authCtx.UserID, req.To, req.Code); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("otp_verified", "user_id", authCtx.UserID)

	writeJSON(w, http.StatusOK, dto.VerifyOTPResponse{Verified: true})
}

// handleServiceError maps OTP errors to HTTP responses.
func (h *OTPHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrOTPNotFound):
		h.writeError(w, http.StatusNotFound, "OTP_NOT_FOUND", "No active verification code for this recipient")
	case errors.Is(err, service.ErrOTPMismatch):
		h.writeError(w, http.StatusBadRequest, "OTP_MISMATCH", "Verification code does not match")
	case errors.Is(err, service.ErrOTPBadLength):
		h.writeError(w, http.StatusBadRequest, "INVALID_OTP_LENGTH", "Code length is out of range")
	// Issuing rides on the dispatch gateway, so its failures surface here.
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
func (h *OTPHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
