// Package usage provides usage record capture and processing.
package usage

import "fmt"

const (
	maxEndpointLength = 256
	maxMethodLength   = 10
)

// ValidateRecordPayload validates usage record payload fields before
// they are persisted. Invalid payloads are dead-lettered by the worker.
func ValidateRecordPayload(payload RecordPayload) error {
	if payload.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if payload.APIKeyID == "" {
		return fmt.Errorf("api_key_id is required")
	}
	if payload.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if len(payload.Endpoint) > maxEndpointLength {
		return fmt.Errorf("endpoint too long")
	}
	if payload.Method == "" || len(payload.Method) > maxMethodLength {
		return fmt.Errorf("method is invalid")
	}
	if payload.StatusCode < 100 || payload.StatusCode > 599 {
		return fmt.Errorf("status_code out of range")
	}
	if payload.ResponseTimeMs < 0 {
		return fmt.Errorf("response_time_ms must be non-negative")
	}
	if payload.RequestSizeBytes < 0 || payload.ResponseSizeBytes < 0 {
		return fmt.Errorf("size bytes must be non-negative")
	}
	if payload.CostMicro < 0 {
		return fmt.Errorf("cost_micro must be non-negative")
	}
	if payload.RecordedAt <= 0 {
		return fmt.Errorf("recorded_at must be set")
	}
	return nil
}
