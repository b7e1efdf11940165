// Package model defines domain entities for the application.
package model

import "time"

// UsageRecord captures one metered API call for billing.
// Records are append-only; they are never mutated after creation.
type UsageRecord struct {
	ID      string `json:"id"`       // ULID (time-sortable)
	EventID string `json:"event_id"` // Idempotency key (Redis stream ID)

	// Caller identity
	UserID   string `json:"user_id"`
	APIKeyID string `json:"api_key_id"`

	// Request descriptor
	Endpoint   string `json:"endpoint"` // Normalized path
	Method     string `json:"method"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`

	// Measurements
	ResponseTimeMs    int64 `json:"response_time_ms"`
	RequestSizeBytes  int64 `json:"request_size_bytes"`
	ResponseSizeBytes int64 `json:"response_size_bytes"`

	// CostMicro is the computed charge in microcredits
	// (1 credit = 1_000_000 microcredits).
	CostMicro int64 `json:"cost_micro"`

	// Timestamps. Insertion order across concurrent requests is not
	// guaranteed; consumers must rely on Timestamp.
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageSummary is a per-user aggregate over a time window.
type UsageSummary struct {
	UserID         string    `json:"user_id"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	RequestCount   int64     `json:"request_count"`
	TotalBytes     int64     `json:"total_bytes"`
	TotalCostMicro int64     `json:"total_cost_micro"`
}
