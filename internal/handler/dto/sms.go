package dto

// SendSMSRequest represents the request body for a single-recipient send.
type SendSMSRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// SendSMSResponse represents an accepted dispatch.
type SendSMSResponse struct {
	MessageID string `json:"message_id"`
	To        string `json:"to"`
	From      string `json:"from"`
	Status    string `json:"status"`
	Segments  int    `json:"segments"`
	CostMicro int64  `json:"cost_micro"`
}

// SendBulkSMSRequest represents the request body for a multi-recipient send.
type SendBulkSMSRequest struct {
	To      []string `json:"to"`
	From    string   `json:"from"`
	Message string   `json:"message"`
}

// BulkRecipientResponse represents the outcome for one recipient.
type BulkRecipientResponse struct {
	To        string `json:"to"`
	MessageID string `json:"message_id,omitempty"`
	Sent      bool   `json:"sent"`
	Error     string `json:"error,omitempty"`
}

// SendBulkSMSResponse summarizes a bulk dispatch.
type SendBulkSMSResponse struct {
	Results   []BulkRecipientResponse `json:"results"`
	SentCount int                     `json:"sent_count"`
	Segments  int                     `json:"segments"`
	CostMicro int64                   `json:"cost_micro"`
}
