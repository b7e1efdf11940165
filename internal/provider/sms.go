package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const maxResponseBodySize = 64 * 1024 // 64KB

// SendResult is the provider's answer for an accepted message.
type SendResult struct {
	MessageID string
	Status    string
	Raw       string
}

// sendResponse mirrors the provider's JSON status payload.
type sendResponse struct {
	Code      string `json:"code"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

// Client sends SMS through the upstream provider's HTTP API.
// The platform's own provider credentials are attached to every call;
// end-client API keys are never forwarded upstream.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a provider client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: NewHTTPClient(timeout),
		logger:     logger,
	}
}

// Send dispatches one message to one recipient. It returns ErrTimeout
// when the provider does not answer in time and ErrRejected when the
// provider answers without accepting the message. Callers own retry
// policy; Send never retries.
func (c *Client) Send(ctx context.Context, to, from, message string) (*SendResult, error) {
	endpoint, err := url.Parse(c.baseURL + "/sms/send")
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}

	q := endpoint.Query()
	q.Set("to", to)
	q.Set("from", from)
	q.Set("sms", message)
	q.Set("api_key", c.apiKey)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("provider timeout",
				slog.String("to", to),
				slog.Duration("elapsed", time.Since(start)))
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("provider rejected message",
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(string(body), 256)))
		return nil, fmt.Errorf("%w: http %d", ErrRejected, resp.StatusCode)
	}

	var payload sendResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if !accepted(payload) {
		c.logger.Warn("provider rejected message",
			slog.String("code", payload.Code),
			slog.String("message", payload.Message))
		return nil, fmt.Errorf("%w: %s", ErrRejected, rejectReason(payload))
	}

	return &SendResult{
		MessageID: payload.MessageID,
		Status:    firstNonEmpty(payload.Code, payload.Status),
		Raw:       string(body),
	}, nil
}

// accepted reports whether the status payload marks the message as taken.
func accepted(p sendResponse) bool {
	switch strings.ToLower(firstNonEmpty(p.Code, p.Status)) {
	case "ok", "accepted", "success", "sent", "queued", "1000":
		return true
	}
	return false
}

func rejectReason(p sendResponse) string {
	if p.Message != "" {
		return p.Message
	}
	return firstNonEmpty(p.Code, p.Status, "unknown")
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
