package dto

import (
	"time"

	"github.com/textship/textship/internal/model"
)

// SubmitSenderIDRequest represents the request body for registering a
// sender ID.
type SubmitSenderIDRequest struct {
	SenderID      string `json:"sender_id"`
	Purpose       string `json:"purpose,omitempty"`
	SampleMessage string `json:"sample_message,omitempty"`
	CompanyName   string `json:"company_name,omitempty"`
}

// ResolveSenderIDRequest represents an admin approval decision.
type ResolveSenderIDRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// SenderIDResponse represents a sender ID in API responses.
type SenderIDResponse struct {
	ID            string     `json:"id"`
	SenderID      string     `json:"sender_id"`
	Status        string     `json:"status"`
	Purpose       string     `json:"purpose,omitempty"`
	SampleMessage string     `json:"sample_message,omitempty"`
	CompanyName   string     `json:"company_name,omitempty"`
	AdminNotes    string     `json:"admin_notes,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SenderIDListResponse represents a list of sender IDs.
type SenderIDListResponse struct {
	Data  []SenderIDResponse `json:"data"`
	Total int                `json:"total"`
}

// ToSenderIDResponse converts a SenderID model to its response DTO.
func ToSenderIDResponse(s *model.SenderID) *SenderIDResponse {
	return &SenderIDResponse{
		ID:            s.ID,
		SenderID:      s.Value,
		Status:        string(s.Status),
		Purpose:       s.Purpose,
		SampleMessage: s.SampleMessage,
		CompanyName:   s.CompanyName,
		AdminNotes:    s.AdminNotes,
		SubmittedAt:   s.SubmittedAt,
		ApprovedAt:    s.ApprovedAt,
		RejectedAt:    s.RejectedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// ToSenderIDListResponse converts a slice of SenderID models.
func ToSenderIDListResponse(records []*model.SenderID) *SenderIDListResponse {
	responses := make([]SenderIDResponse, len(records))
	for i, record := range records {
		responses[i] = *ToSenderIDResponse(record)
	}
	return &SenderIDListResponse{
		Data:  responses,
		Total: len(responses),
	}
}
