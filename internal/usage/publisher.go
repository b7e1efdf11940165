// Package usage provides usage record capture and processing.
//
// Metered requests publish billing events to a Redis stream after the
// response has been sent; a background worker batch-persists them.
// Billing accuracy is secondary to request availability, so every
// failure on this path is logged and dropped, never propagated.
package usage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textship/textship/internal/metrics"
)

const (
	// StreamKey is the Redis stream for usage records.
	StreamKey = "stream:usage_records"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:usage_records:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// RecordPayload is the compressed usage event format for the Redis stream.
type RecordPayload struct {
	UserID            string `json:"uid"`
	APIKeyID          string `json:"kid"`
	Endpoint          string `json:"ep"`
	Method            string `json:"m"`
	StatusCode        int    `json:"st"`
	RequestID         string `json:"rid,omitempty"`
	ResponseTimeMs    int64  `json:"rt"`
	RequestSizeBytes  int64  `json:"rq"`
	ResponseSizeBytes int64  `json:"rs"`
	CostMicro         int64  `json:"c"`
	RecordedAt        int64  `json:"t"` // Unix milliseconds
}

// Publisher enqueues usage records to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new usage record publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "usage.publisher"),
		metrics: recorder,
	}
}

// Publish adds a usage record to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, record RecordPayload) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget): a metering
// failure must never surface on the request path.
func (p *Publisher) PublishAsync(record RecordPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, record)
		if err != nil {
			p.logger.Warn("failed to publish usage record",
				"user_id", record.UserID,
				"endpoint", record.Endpoint,
				"error", err,
			)
			p.metrics.IncUsageEventPublished("dropped")
			return
		}

		p.logger.Debug("usage record published",
			"user_id", record.UserID,
			"endpoint", record.Endpoint,
			"stream_id", streamID,
		)
		p.metrics.IncUsageEventPublished("success")
	}()
}
