package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Common errors for wallet operations.
var (
	// ErrInsufficientBalance means the conditional debit matched no row:
	// the balance would have gone negative.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// GetBalance returns a user's wallet balance in microcredits.
func (r *Repository) GetBalance(ctx context.Context, userID string) (int64, error) {
	query := `SELECT balance_micro FROM users WHERE id = $1`

	var balance int64
	err := r.pool.QueryRow(ctx, query, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return balance, nil
}

// DebitBalance atomically decrements a user's balance by amountMicro.
//
// The decrement is conditional (WHERE balance_micro >= amount) so two
// concurrent debits can never overdraw the wallet; the losing request
// gets ErrInsufficientBalance instead. Returns the remaining balance.
func (r *Repository) DebitBalance(ctx context.Context, userID string, amountMicro int64) (int64, error) {
	if amountMicro < 0 {
		return 0, fmt.Errorf("debit amount must be non-negative, got %d", amountMicro)
	}

	query := `
		UPDATE users
		SET balance_micro = balance_micro - $2
		WHERE id = $1 AND balance_micro >= $2
		RETURNING balance_micro
	`

	var remaining int64
	err := r.pool.QueryRow(ctx, query, userID, amountMicro).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No matching row: either the user is unknown or the
			// balance was too low. Disambiguate for the caller.
			if _, lookupErr := r.GetBalance(ctx, userID); lookupErr != nil {
				return 0, lookupErr
			}
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("failed to debit balance: %w", err)
	}

	return remaining, nil
}

// CreditBalance atomically increments a user's balance by amountMicro.
// Used for admin top-ups and for refunds when the upstream provider
// rejects a dispatch after the debit. Returns the new balance.
func (r *Repository) CreditBalance(ctx context.Context, userID string, amountMicro int64) (int64, error) {
	if amountMicro < 0 {
		return 0, fmt.Errorf("credit amount must be non-negative, got %d", amountMicro)
	}

	query := `
		UPDATE users
		SET balance_micro = balance_micro + $2
		WHERE id = $1
		RETURNING balance_micro
	`

	var balance int64
	err := r.pool.QueryRow(ctx, query, userID, amountMicro).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit balance: %w", err)
	}

	return balance, nil
}
