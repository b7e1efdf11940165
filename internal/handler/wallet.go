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
	"github.com/textship/textship/internal/repository"
)

// Admin credits are capped at one million credits per call.
const maxCreditMicro = 1_000_000 * model.MicroPerCredit

// WalletHandler handles wallet balance endpoints.
type WalletHandler struct {
	repo   *repository.Repository
	logger *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(repo *repository.Repository, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		repo:   repo,
		logger: logger,
	}
}

// Get handles GET /api/v1/client/wallet.
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	balance, err := h.repo.GetBalance(r.Context(), authCtx.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed to get balance", "user_id", authCtx.UserID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch wallet balance")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToWalletResponse(authCtx.UserID, balance))
}

// AdminCredit handles POST /api/v1/admin/wallets/{user_id}/credit (admin only).
func (h *WalletHandler) AdminCredit(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "MISSING_USER_ID", "User ID is required")
		return
	}

	var req dto.CreditWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if req.AmountMicro <= 0 || req.AmountMicro > maxCreditMicro {
		h.writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Credit amount is out of range")
		return
	}

	balance, err := h.repo.CreditBalance(r.Context(), userID, req.AmountMicro)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
			return
		}
		h.logger.Error("failed to credit wallet", "user_id", userID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to credit wallet")
		return
	}

	h.logger.Info("wallet_credited",
		"user_id", userID,
		"amount_micro", req.AmountMicro,
		"admin_user_id", authCtx.UserID,
		"reason", req.Reason,
	)

	writeJSON(w, http.StatusOK, dto.CreditWalletResponse{
		UserID:        userID,
		CreditedMicro: req.AmountMicro,
		BalanceMicro:  balance,
		Balance:       float64(balance) / float64(model.MicroPerCredit),
	})
}

// writeError writes an error response.
func (h *WalletHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
