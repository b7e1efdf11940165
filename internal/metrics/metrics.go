// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Dispatch metrics
	IncSMSDispatched(status string) // status: "sent", "rejected", "timeout"
	ObserveDispatchDuration(duration time.Duration)
	IncSenderCacheHit()
	IncSenderCacheMiss()

	// Sender-ID workflow metrics
	IncSenderIDSubmitted()
	IncSenderIDResolved(status string) // status: "APPROVED" or "REJECTED"

	// OTP metrics
	IncOTPIssued()
	IncOTPVerified(status string) // status: "success", "mismatch", "not_found"

	// Usage pipeline metrics
	IncUsageEventPublished(status string) // status: "success" or "dropped"
	IncUsageEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveUsageBatchSize(size int)
	ObserveUsageBatchDuration(duration time.Duration)
	SetUsageQueueDepth(depth int64)
	ObserveUsageIngestLag(lag time.Duration)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
