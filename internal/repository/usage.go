package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/textship/textship/internal/model"
)

// UsageRepository provides database access for usage records.
type UsageRepository struct {
	repo *Repository
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(repo *Repository) *UsageRepository {
	return &UsageRepository{repo: repo}
}

// BulkInsert inserts multiple usage records with idempotency via ON CONFLICT DO NOTHING.
// Records are append-only; there is no update path.
func (r *UsageRepository) BulkInsert(ctx context.Context, records []*model.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO usage_records (
			id, event_id, user_id, api_key_id, endpoint, method, status_code,
			request_id, response_time_ms, request_size_bytes, response_size_bytes,
			cost_micro, recorded_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, rec := range records {
		batch.Queue(query,
			rec.ID,
			rec.EventID,
			rec.UserID,
			rec.APIKeyID,
			rec.Endpoint,
			rec.Method,
			rec.StatusCode,
			nullableString(rec.RequestID),
			rec.ResponseTimeMs,
			rec.RequestSizeBytes,
			rec.ResponseSizeBytes,
			rec.CostMicro,
			rec.Timestamp,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(records); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert usage record %d: %w", i, err)
		}
	}

	return nil
}

// SummarizeByUser aggregates usage for a user over [from, to).
func (r *UsageRepository) SummarizeByUser(ctx context.Context, userID string, from, to time.Time) (*model.UsageSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(request_size_bytes + response_size_bytes), 0),
		       COALESCE(SUM(cost_micro), 0)
		FROM usage_records
		WHERE user_id = $1 AND recorded_at >= $2 AND recorded_at < $3
	`

	summary := &model.UsageSummary{
		UserID: userID,
		From:   from,
		To:     to,
	}

	err := r.repo.pool.QueryRow(ctx, query, userID, from, to).Scan(
		&summary.RequestCount,
		&summary.TotalBytes,
		&summary.TotalCostMicro,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	return summary, nil
}

// ListRecentByUser returns the most recent usage records for a user.
func (r *UsageRepository) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.UsageRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, event_id, user_id, api_key_id, endpoint, method, status_code,
		       COALESCE(request_id, ''), response_time_ms, request_size_bytes,
		       response_size_bytes, cost_micro, recorded_at, created_at
		FROM usage_records
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	defer rows.Close()

	var records []*model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.UserID,
			&rec.APIKeyID,
			&rec.Endpoint,
			&rec.Method,
			&rec.StatusCode,
			&rec.RequestID,
			&rec.ResponseTimeMs,
			&rec.RequestSizeBytes,
			&rec.ResponseSizeBytes,
			&rec.CostMicro,
			&rec.Timestamp,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, nil
}
