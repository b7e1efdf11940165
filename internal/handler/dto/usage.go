package dto

import (
	"time"

	"github.com/textship/textship/internal/model"
)

// UsageSummaryResponse represents an aggregated usage window.
type UsageSummaryResponse struct {
	Period struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"period"`
	RequestCount   int64 `json:"request_count"`
	TotalBytes     int64 `json:"total_bytes"`
	TotalCostMicro int64 `json:"total_cost_micro"`
}

// UsageRecordResponse represents one metered request.
type UsageRecordResponse struct {
	ID           string    `json:"id"`
	Endpoint     string    `json:"endpoint"`
	Method       string    `json:"method"`
	StatusCode   int       `json:"status_code"`
	CostMicro    int64     `json:"cost_micro"`
	ResponseTime int64     `json:"response_time_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// RecentUsageResponse represents the most recent metered requests.
type RecentUsageResponse struct {
	Data  []UsageRecordResponse `json:"data"`
	Total int                   `json:"total"`
}

// ToUsageSummaryResponse converts a UsageSummary model.
func ToUsageSummaryResponse(summary *model.UsageSummary) *UsageSummaryResponse {
	resp := &UsageSummaryResponse{
		RequestCount:   summary.RequestCount,
		TotalBytes:     summary.TotalBytes,
		TotalCostMicro: summary.TotalCostMicro,
	}
	resp.Period.From = summary.From.UTC().Format(time.RFC3339)
	resp.Period.To = summary.To.UTC().Format(time.RFC3339)
	return resp
}

// ToRecentUsageResponse converts a slice of UsageRecord models.
func ToRecentUsageResponse(records []*model.UsageRecord) *RecentUsageResponse {
	responses := make([]UsageRecordResponse, len(records))
	for i, record := range records {
		responses[i] = UsageRecordResponse{
			ID:           record.ID,
			Endpoint:     record.Endpoint,
			Method:       record.Method,
			StatusCode:   record.StatusCode,
			CostMicro:    record.CostMicro,
			ResponseTime: record.ResponseTimeMs,
			Timestamp:    record.Timestamp,
		}
	}
	return &RecentUsageResponse{
		Data:  responses,
		Total: len(responses),
	}
}
