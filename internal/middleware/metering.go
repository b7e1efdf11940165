package middleware

import (
	"io"
	"net/http"
	"time"

	"github.com/textship/textship/internal/auth"
	"github.com/textship/textship/internal/billing"
	"github.com/textship/textship/internal/usage"
)

// Metering response headers.
const (
	HeaderUsageTracked = "X-Usage-Tracked"
	HeaderAPIKeyID     = "X-API-Key-ID"
)

// UsagePublisher enqueues usage records off the request path.
type UsagePublisher interface {
	PublishAsync(record usage.RecordPayload)
}

// meteredWriter wraps http.ResponseWriter to capture status and body size.
type meteredWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (mw *meteredWriter) WriteHeader(code int) {
	if mw.wroteHeader {
		return
	}
	mw.status = code
	mw.wroteHeader = true
	mw.ResponseWriter.WriteHeader(code)
}

func (mw *meteredWriter) Write(b []byte) (int, error) {
	if !mw.wroteHeader {
		mw.WriteHeader(http.StatusOK)
	}
	n, err := mw.ResponseWriter.Write(b)
	mw.bytes += int64(n)
	return n, err
}

// countingReader wraps the request body to measure what the handler
// actually consumed. Content-Length lies for chunked requests.
type countingReader struct {
	io.ReadCloser
	bytes int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.ReadCloser.Read(p)
	cr.bytes += int64(n)
	return n, err
}

// Metering returns middleware that records billable usage for every
// authenticated request. It must run after Auth: requests without an
// auth context pass through unmetered and unmarked. The usage record is
// published after the response is written, so metering can never delay
// or fail a request.
func Metering(publisher UsagePublisher, calc *billing.Calculator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				next.ServeHTTP(w, r)
				return
			}

			// Marker headers go out before the handler commits the response.
			w.Header().Set(HeaderUsageTracked, "true")
			w.Header().Set(HeaderAPIKeyID, authCtx.KeyID)

			body := &countingReader{ReadCloser: r.Body}
			r.Body = body

			wrapped := &meteredWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			elapsed := time.Since(start)
			requestBytes := body.bytes
			if requestBytes == 0 && r.ContentLength > 0 {
				requestBytes = r.ContentLength
			}

			endpoint := billing.NormalizeEndpoint(r.URL.Path)
			cost := calc.RequestCost(endpoint, wrapped.status, requestBytes, wrapped.bytes)

			publisher.PublishAsync(usage.RecordPayload{
				UserID:            authCtx.UserID,
				APIKeyID:          authCtx.KeyID,
				Endpoint:          endpoint,
				Method:            r.Method,
				StatusCode:        wrapped.status,
				RequestID:         GetRequestID(r.Context()),
				ResponseTimeMs:    elapsed.Milliseconds(),
				RequestSizeBytes:  requestBytes,
				ResponseSizeBytes: wrapped.bytes,
				CostMicro:         cost,
				RecordedAt:        time.Now().UnixMilli(),
			})
		})
	}
}
