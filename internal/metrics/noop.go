package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSMSDispatched is a no-op.
func (n *NoopRecorder) IncSMSDispatched(status string) {}

// ObserveDispatchDuration is a no-op.
func (n *NoopRecorder) ObserveDispatchDuration(duration time.Duration) {}

// IncSenderCacheHit is a no-op.
func (n *NoopRecorder) IncSenderCacheHit() {}

// IncSenderCacheMiss is a no-op.
func (n *NoopRecorder) IncSenderCacheMiss() {}

// IncSenderIDSubmitted is a no-op.
func (n *NoopRecorder) IncSenderIDSubmitted() {}

// IncSenderIDResolved is a no-op.
func (n *NoopRecorder) IncSenderIDResolved(status string) {}

// IncOTPIssued is a no-op.
func (n *NoopRecorder) IncOTPIssued() {}

// IncOTPVerified is a no-op.
func (n *NoopRecorder) IncOTPVerified(status string) {}

// IncUsageEventPublished is a no-op.
func (n *NoopRecorder) IncUsageEventPublished(status string) {}

// IncUsageEventProcessed is a no-op.
func (n *NoopRecorder) IncUsageEventProcessed(status string) {}

// ObserveUsageBatchSize is a no-op.
func (n *NoopRecorder) ObserveUsageBatchSize(size int) {}

// ObserveUsageBatchDuration is a no-op.
func (n *NoopRecorder) ObserveUsageBatchDuration(duration time.Duration) {}

// SetUsageQueueDepth is a no-op.
func (n *NoopRecorder) SetUsageQueueDepth(depth int64) {}

// ObserveUsageIngestLag is a no-op.
func (n *NoopRecorder) ObserveUsageIngestLag(lag time.Duration) {}
