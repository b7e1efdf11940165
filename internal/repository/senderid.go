package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/textship/textship/internal/model"
)

// Common errors for sender ID repository operations.
var (
	ErrSenderIDNotFound = errors.New("sender ID not found")
	ErrSenderIDExists   = errors.New("sender ID already submitted")
	// ErrSenderIDResolved means the record is already in a terminal
	// state and cannot transition again.
	ErrSenderIDResolved = errors.New("sender ID already resolved")
)

// CreateSenderID inserts a new PENDING sender ID submission.
func (r *Repository) CreateSenderID(ctx context.Context, s *model.SenderID) error {
	query := `
		INSERT INTO sender_ids (
			id, user_id, value, status, purpose, sample_message, company_name,
			submitted_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.Value,
		s.Status,
		nullableString(s.Purpose),
		nullableString(s.SampleMessage),
		nullableString(s.CompanyName),
		s.SubmittedAt,
		s.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSenderIDExists
		}
		return fmt.Errorf("failed to create sender ID: %w", err)
	}

	return nil
}

// GetSenderIDByID retrieves a sender ID record by its ID.
func (r *Repository) GetSenderIDByID(ctx context.Context, id string) (*model.SenderID, error) {
	query := senderIDSelect + ` WHERE id = $1`
	return scanSenderID(r.pool.QueryRow(ctx, query, id))
}

// GetSenderIDByValueAndUser retrieves a sender ID registered by a user.
// Used on the dispatch path to check ownership and approval.
func (r *Repository) GetSenderIDByValueAndUser(ctx context.Context, value, userID string) (*model.SenderID, error) {
	query := senderIDSelect + ` WHERE value = $1 AND user_id = $2`
	return scanSenderID(r.pool.QueryRow(ctx, query, value, userID))
}

// ListSenderIDsByUserID retrieves all sender IDs submitted by a user.
func (r *Repository) ListSenderIDsByUserID(ctx context.Context, userID string) ([]*model.SenderID, error) {
	query := senderIDSelect + ` WHERE user_id = $1 ORDER BY submitted_at DESC`
	return r.querySenderIDs(ctx, query, userID)
}

// ListSenderIDsByStatus retrieves sender IDs in a given state, oldest
// first, for the admin review queue.
func (r *Repository) ListSenderIDsByStatus(ctx context.Context, status model.SenderIDStatus) ([]*model.SenderID, error) {
	query := senderIDSelect + ` WHERE status = $1 ORDER BY submitted_at ASC`
	return r.querySenderIDs(ctx, query, status)
}

// ResolveSenderID transitions a PENDING record to APPROVED or REJECTED.
//
// The update is conditional on the current status so two concurrent
// admin decisions cannot both succeed: the WHERE clause only matches
// PENDING rows, and a zero-row result is disambiguated into
// ErrSenderIDNotFound or ErrSenderIDResolved with a follow-up read.
// Exactly one of approved_at/rejected_at is set, never both.
func (r *Repository) ResolveSenderID(ctx context.Context, id string, status model.SenderIDStatus, adminUserID, notes string, decidedAt time.Time) (*model.SenderID, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("target status %s is not terminal", status)
	}

	var approvedAt, rejectedAt interface{}
	if status == model.SenderIDApproved {
		approvedAt = decidedAt
	} else {
		rejectedAt = decidedAt
	}

	query := `
		UPDATE sender_ids
		SET status = $2,
		    approved_at = $3,
		    rejected_at = $4,
		    approved_by_user_id = $5,
		    admin_notes = $6,
		    updated_at = $7
		WHERE id = $1 AND status = 'PENDING'
	`

	result, err := r.pool.Exec(ctx, query,
		id,
		status,
		approvedAt,
		rejectedAt,
		adminUserID,
		nullableString(notes),
		decidedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sender ID: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the record does not exist or it is already terminal.
		existing, err := r.GetSenderIDByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing.Status.IsTerminal() {
			return nil, ErrSenderIDResolved
		}
		// Status changed under us but is somehow still non-terminal.
		return nil, ErrSenderIDResolved
	}

	return r.GetSenderIDByID(ctx, id)
}

const senderIDSelect = `
	SELECT id, user_id, value, status, purpose, sample_message, company_name,
	       admin_notes, approved_by_user_id, submitted_at, approved_at,
	       rejected_at, updated_at
	FROM sender_ids`

func (r *Repository) querySenderIDs(ctx context.Context, query string, args ...interface{}) ([]*model.SenderID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sender IDs: %w", err)
	}
	defer rows.Close()

	var ids []*model.SenderID
	for rows.Next() {
		s, err := scanSenderIDFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sender ID: %w", err)
		}
		ids = append(ids, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sender IDs: %w", err)
	}

	return ids, nil
}

func scanSenderID(row pgx.Row) (*model.SenderID, error) {
	s, err := scanSenderIDRow(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSenderIDNotFound
		}
		return nil, fmt.Errorf("failed to scan sender ID: %w", err)
	}
	return s, nil
}

func scanSenderIDFromRows(rows pgx.Rows) (*model.SenderID, error) {
	return scanSenderIDRow(rows.Scan)
}

func scanSenderIDRow(scan func(dest ...any) error) (*model.SenderID, error) {
	var s model.SenderID
	var purpose, sampleMessage, companyName, adminNotes *string

	err := scan(
		&s.ID,
		&s.UserID,
		&s.Value,
		&s.Status,
		&purpose,
		&sampleMessage,
		&companyName,
		&adminNotes,
		&s.ApprovedByUserID,
		&s.SubmittedAt,
		&s.ApprovedAt,
		&s.RejectedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if purpose != nil {
		s.Purpose = *purpose
	}
	if sampleMessage != nil {
		s.SampleMessage = *sampleMessage
	}
	if companyName != nil {
		s.CompanyName = *companyName
	}
	if adminNotes != nil {
		s.AdminNotes = *adminNotes
	}

	return &s, nil
}
