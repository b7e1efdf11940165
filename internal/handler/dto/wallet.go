package dto

import "github.com/textship/textship/internal/model"

// WalletResponse represents a wallet balance.
type WalletResponse struct {
	UserID       string  `json:"user_id"`
	BalanceMicro int64   `json:"balance_micro"`
	Balance      float64 `json:"balance"`
}

// CreditWalletRequest represents an admin top-up.
type CreditWalletRequest struct {
	AmountMicro int64  `json:"amount_micro"`
	Reason      string `json:"reason,omitempty"`
}

// CreditWalletResponse reports the balance after a top-up.
type CreditWalletResponse struct {
	UserID        string  `json:"user_id"`
	CreditedMicro int64   `json:"credited_micro"`
	BalanceMicro  int64   `json:"balance_micro"`
	Balance       float64 `json:"balance"`
}

// ToWalletResponse converts a raw microcredit balance.
func ToWalletResponse(userID string, balanceMicro int64) *WalletResponse {
	return &WalletResponse{
		UserID:       userID,
		BalanceMicro: balanceMicro,
		Balance:      float64(balanceMicro) / float64(model.MicroPerCredit),
	}
}
