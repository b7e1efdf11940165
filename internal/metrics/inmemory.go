package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	SMSSent                 uint64
	SMSRejected             uint64
	SMSTimedOut             uint64
	DispatchDurationCount   uint64
	DispatchDurationTotalNs int64
	SenderCacheHits         uint64
	SenderCacheMisses       uint64
	SenderIDsSubmitted      uint64
	SenderIDsApproved       uint64
	SenderIDsRejected       uint64
	OTPsIssued              uint64
	OTPsVerified            uint64
	OTPsFailed              uint64
	UsageEventsPublished    uint64
	UsageEventsDropped      uint64
	UsageEventsProcessed    uint64
	UsageEventsFailed       uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	smsSent                 uint64
	smsRejected             uint64
	smsTimedOut             uint64
	dispatchDurationCount   uint64
	dispatchDurationTotalNs int64
	senderCacheHits         uint64
	senderCacheMisses       uint64
	senderIDsSubmitted      uint64
	senderIDsApproved       uint64
	senderIDsRejected       uint64
	otpsIssued              uint64
	otpsVerified            uint64
	otpsFailed              uint64
	usageEventsPublished    uint64
	usageEventsDropped      uint64
	usageEventsProcessed    uint64
	usageEventsFailed       uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		SMSSent:                 atomic.LoadUint64(&m.smsSent),
		SMSRejected:             atomic.LoadUint64(&m.smsRejected),
		SMSTimedOut:             atomic.LoadUint64(&m.smsTimedOut),
		DispatchDurationCount:   atomic.LoadUint64(&m.dispatchDurationCount),
		DispatchDurationTotalNs: atomic.LoadInt64(&m.dispatchDurationTotalNs),
		SenderCacheHits:         atomic.LoadUint64(&m.senderCacheHits),
		SenderCacheMisses:       atomic.LoadUint64(&m.senderCacheMisses),
		SenderIDsSubmitted:      atomic.LoadUint64(&m.senderIDsSubmitted),
		SenderIDsApproved:       atomic.LoadUint64(&m.senderIDsApproved),
		SenderIDsRejected:       atomic.LoadUint64(&m.senderIDsRejected),
		OTPsIssued:              atomic.LoadUint64(&m.otpsIssued),
		OTPsVerified:            atomic.LoadUint64(&m.otpsVerified),
		OTPsFailed:              atomic.LoadUint64(&m.otpsFailed),
		UsageEventsPublished:    atomic.LoadUint64(&m.usageEventsPublished),
		UsageEventsDropped:      atomic.LoadUint64(&m.usageEventsDropped),
		UsageEventsProcessed:    atomic.LoadUint64(&m.usageEventsProcessed),
		UsageEventsFailed:       atomic.LoadUint64(&m.usageEventsFailed),
	}
}

// IncSMSDispatched increments the dispatch outcome counter.
func (m *InMemoryRecorder) IncSMSDispatched(status string) {
	switch status {
	case "sent":
		atomic.AddUint64(&m.smsSent, 1)
	case "timeout":
		atomic.AddUint64(&m.smsTimedOut, 1)
	default:
		atomic.AddUint64(&m.smsRejected, 1)
	}
}

// ObserveDispatchDuration records dispatch duration.
func (m *InMemoryRecorder) ObserveDispatchDuration(duration time.Duration) {
	atomic.AddUint64(&m.dispatchDurationCount, 1)
	atomic.AddInt64(&m.dispatchDurationTotalNs, duration.Nanoseconds())
}

// IncSenderCacheHit increments the sender cache hit counter.
func (m *InMemoryRecorder) IncSenderCacheHit() {
	atomic.AddUint64(&m.senderCacheHits, 1)
}

// IncSenderCacheMiss increments the sender cache miss counter.
func (m *InMemoryRecorder) IncSenderCacheMiss() {
	atomic.AddUint64(&m.senderCacheMisses, 1)
}

// IncSenderIDSubmitted increments the submission counter.
func (m *InMemoryRecorder) IncSenderIDSubmitted() {
	atomic.AddUint64(&m.senderIDsSubmitted, 1)
}

// IncSenderIDResolved increments the approval or rejection counter.
func (m *InMemoryRecorder) IncSenderIDResolved(status string) {
	if status == "APPROVED" {
		atomic.AddUint64(&m.senderIDsApproved, 1)
		return
	}
	atomic.AddUint64(&m.senderIDsRejected, 1)
}

// IncOTPIssued increments the OTP issue counter.
func (m *InMemoryRecorder) IncOTPIssued() {
	atomic.AddUint64(&m.otpsIssued, 1)
}

// IncOTPVerified increments the OTP verification outcome counter.
func (m *InMemoryRecorder) IncOTPVerified(status string) {
	if status == "success" {
		atomic.AddUint64(&m.otpsVerified, 1)
		return
	}
	atomic.AddUint64(&m.otpsFailed, 1)
}

// IncUsageEventPublished increments the publish outcome counter.
func (m *InMemoryRecorder) IncUsageEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.usageEventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.usageEventsDropped, 1)
}

// IncUsageEventProcessed increments the processing outcome counter.
func (m *InMemoryRecorder) IncUsageEventProcessed(status string) {
	if status == "success" {
		atomic.AddUint64(&m.usageEventsProcessed, 1)
		return
	}
	atomic.AddUint64(&m.usageEventsFailed, 1)
}

// ObserveUsageBatchSize is not tracked in memory.
func (m *InMemoryRecorder) ObserveUsageBatchSize(size int) {}

// ObserveUsageBatchDuration is not tracked in memory.
func (m *InMemoryRecorder) ObserveUsageBatchDuration(duration time.Duration) {}

// SetUsageQueueDepth is not tracked in memory.
func (m *InMemoryRecorder) SetUsageQueueDepth(depth int64) {}

// ObserveUsageIngestLag is not tracked in memory.
func (m *InMemoryRecorder) ObserveUsageIngestLag(lag time.Duration) {}
