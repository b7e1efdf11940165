// Package model defines domain entities for the application.
package model

import "time"

// SenderIDStatus represents the approval state of a sender ID.
type SenderIDStatus string

const (
	SenderIDPending  SenderIDStatus = "PENDING"
	SenderIDApproved SenderIDStatus = "APPROVED"
	SenderIDRejected SenderIDStatus = "REJECTED"
)

// IsValid checks if the status is a known value.
func (s SenderIDStatus) IsValid() bool {
	return s == SenderIDPending || s == SenderIDApproved || s == SenderIDRejected
}

// IsTerminal returns true if the status allows no further transitions.
func (s SenderIDStatus) IsTerminal() bool {
	return s == SenderIDApproved || s == SenderIDRejected
}

// SenderID represents a client-submitted sender identifier awaiting
// or holding an approval decision.
//
// While Status is PENDING both ApprovedAt and RejectedAt are nil.
// Once a decision is made exactly one of them is set, together with
// ApprovedByUserID, and the record never transitions again.
type SenderID struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Value            string         `json:"value"`
	Status           SenderIDStatus `json:"status"`
	Purpose          string         `json:"purpose,omitempty"`
	SampleMessage    string         `json:"sample_message,omitempty"`
	CompanyName      string         `json:"company_name,omitempty"`
	AdminNotes       string         `json:"admin_notes,omitempty"`
	ApprovedByUserID *string        `json:"approved_by_user_id,omitempty"`
	SubmittedAt      time.Time      `json:"submitted_at"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	RejectedAt       *time.Time     `json:"rejected_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsApproved returns true if the sender ID may be used for dispatch.
func (s *SenderID) IsApproved() bool {
	return s.Status == SenderIDApproved
}
