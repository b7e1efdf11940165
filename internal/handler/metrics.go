package handler

import (
	"fmt"
	"net/http"

	"github.com/textship/textship/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "textship_sms_dispatched_total{status=\"sent\"} %d\n", snap.SMSSent)
	writeMetric(w, "textship_sms_dispatched_total{status=\"rejected\"} %d\n", snap.SMSRejected)
	writeMetric(w, "textship_sms_dispatched_total{status=\"timeout\"} %d\n", snap.SMSTimedOut)
	writeMetric(w, "textship_dispatch_duration_seconds_count %d\n", snap.DispatchDurationCount)
	writeMetric(w, "textship_dispatch_duration_seconds_sum %.6f\n", float64(snap.DispatchDurationTotalNs)/1e9)

	writeMetric(w, "textship_sender_cache_hits_total %d\n", snap.SenderCacheHits)
	writeMetric(w, "textship_sender_cache_misses_total %d\n", snap.SenderCacheMisses)

	writeMetric(w, "textship_sender_ids_submitted_total %d\n", snap.SenderIDsSubmitted)
	writeMetric(w, "textship_sender_ids_resolved_total{status=\"APPROVED\"} %d\n", snap.SenderIDsApproved)
	writeMetric(w, "textship_sender_ids_resolved_total{status=\"REJECTED\"} %d\n", snap.SenderIDsRejected)

	writeMetric(w, "textship_otp_issued_total %d\n", snap.OTPsIssued)
	writeMetric(w, "textship_otp_verified_total{status=\"success\"} %d\n", snap.OTPsVerified)
	writeMetric(w, "textship_otp_verified_total{status=\"failed\"} %d\n", snap.OTPsFailed)

	writeMetric(w, "textship_usage_events_published_total{status=\"success\"} %d\n", snap.UsageEventsPublished)
	writeMetric(w, "textship_usage_events_published_total{status=\"dropped\"} %d\n", snap.UsageEventsDropped)
	writeMetric(w, "textship_usage_events_processed_total{status=\"success\"} %d\n", snap.UsageEventsProcessed)
	writeMetric(w, "textship_usage_events_processed_total{status=\"failed\"} %d\n", snap.UsageEventsFailed)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
