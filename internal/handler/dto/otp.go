package dto

import "time"

// SendOTPRequest represents the request body for issuing a code.
type SendOTPRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	// Length and TTLSeconds override service defaults when non-zero.
	Length     int `json:"length,omitempty"`
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// SendOTPResponse represents an issued code. The code itself is only
// ever delivered over SMS.
type SendOTPResponse struct {
	MessageID string    `json:"message_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CostMicro int64     `json:"cost_micro"`
}

// VerifyOTPRequest represents the request body for verifying a code.
type VerifyOTPRequest struct {
	To   string `json:"to"`
	Code string `json:"code"`
}

// VerifyOTPResponse reports the verification outcome.
type VerifyOTPResponse struct {
	Verified bool `json:"verified"`
}
