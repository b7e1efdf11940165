// Package model defines domain entities for the application.
package model

import "time"

// ClientAPIRoute maps a client-chosen route to an internal gateway target.
// The (UserID, Route) pair is unique. MappedTo must be one of the fixed
// allow-list of internal targets; anything else is rejected at creation
// time, never at dispatch time.
type ClientAPIRoute struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Route     string    `json:"route"`     // Must start with "/"
	MappedTo  string    `json:"mapped_to"` // Internal target path
	RateLimit int       `json:"rate_limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
