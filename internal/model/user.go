// Package model defines domain entities for the application.
package model

import "time"

// MicroPerCredit is the number of microcredits in one credit.
const MicroPerCredit int64 = 1_000_000

// User represents a platform account. The wallet balance lives on the
// user row and is only changed through atomic conditional updates.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	BalanceMicro int64     `json:"balance_micro"`
	CreatedAt    time.Time `json:"created_at"`
}

// BalanceCredits returns the wallet balance in whole credits as a float,
// for display only. Arithmetic always happens in microcredits.
func (u *User) BalanceCredits() float64 {
	return float64(u.BalanceMicro) / float64(MicroPerCredit)
}
