//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/textship/textship/internal/auth"
	"github.com/textship/textship/internal/model"
	"github.com/textship/textship/internal/repository"
)

const (
	systemUserID = "system"
	systemEmail  = "system@textship.local"

	testRecipient = "+15550100200"
)

type apiKeyCreateResponse struct {
	ID     string   `json:"id"`
	Key    string   `json:"key"`
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes"`
}

type senderIDResponse struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Status   string `json:"status"`
}

type sendSMSResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Segments  int    `json:"segments"`
	CostMicro int64  `json:"cost_micro"`
}

type walletResponse struct {
	UserID       string `json:"user_id"`
	BalanceMicro int64  `json:"balance_micro"`
}

type creditWalletResponse struct {
	UserID        string `json:"user_id"`
	CreditedMicro int64  `json:"credited_micro"`
	BalanceMicro  int64  `json:"balance_micro"`
}

type usageSummaryResponse struct {
	RequestCount   int64 `json:"request_count"`
	TotalBytes     int64 `json:"total_bytes"`
	TotalCostMicro int64 `json:"total_cost_micro"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("TEXTSHIP_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)
	testKey, testUserID := createAPIKey(t, baseURL, bootstrapKey)

	creditWallet(t, baseURL, bootstrapKey, testUserID, 10_000_000)

	sender := submitSenderID(t, baseURL, testKey)
	if sender.Status != "PENDING" {
		t.Fatalf("expected PENDING after submit, got %s", sender.Status)
	}

	// Sending under an unapproved sender must be refused.
	assertSendRejected(t, baseURL, testKey, sender.SenderID, http.StatusForbidden)

	approveSenderID(t, baseURL, bootstrapKey, sender.ID)

	before := getWalletBalance(t, baseURL, testKey)
	sendSMS(t, baseURL, testKey, sender.SenderID)
	after := getWalletBalance(t, baseURL, testKey)
	if after >= before {
		t.Fatalf("expected balance to decrease after send: before=%d after=%d", before, after)
	}

	// Same send again, this time through a registered gateway route.
	registerRoute(t, baseURL, testKey, "/notify", "/api/v1/client/sms/send")
	sendSMSViaGateway(t, baseURL, testKey, "/notify", sender.SenderID)

	waitForUsage(t, baseURL, testKey)
}

func registerRoute(t *testing.T, baseURL, apiKey, route, mappedTo string) {
	t.Helper()

	payload := map[string]any{
		"route":     route,
		"mapped_to": mappedTo,
	}

	var resp struct {
		ID       string `json:"id"`
		Route    string `json:"route"`
		MappedTo string `json:"mapped_to"`
	}
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/client/routes", apiKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from route create, got %d", status)
	}
	if resp.ID == "" || resp.MappedTo != mappedTo {
		t.Fatalf("route create response missing fields: %+v", resp)
	}
}

func sendSMSViaGateway(t *testing.T, baseURL, apiKey, route, from string) {
	t.Helper()

	payload := map[string]any{
		"to":      testRecipient,
		"from":    from,
		"message": "Hello via the gateway",
	}

	var resp sendSMSResponse
	status := doJSON(t, http.MethodPost, baseURL+"/x"+route, apiKey, payload, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from gateway send, got %d", status)
	}
	if resp.MessageID == "" || resp.Status != "sent" {
		t.Fatalf("gateway send response missing fields: %+v", resp)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func bootstrapAdminKey(t *testing.T, dbURL string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	if err := ensureUser(ctx, repo, systemUserID, systemEmail); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        systemUserID,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        []string{model.ScopeAdmin},
		RateLimitTier: model.TierUnlimited,
		Name:          "e2e-bootstrap",
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		t.Fatalf("create api key: %v", err)
	}

	return generated.Plaintext
}

func ensureUser(ctx context.Context, repo *repository.Repository, userID, email string) error {
	if existing, err := repo.GetUserByID(ctx, userID); err == nil {
		if existing.Email != email {
			return fmt.Errorf("user %s exists with different email: %s", userID, existing.Email)
		}
		return nil
	}

	if byEmail, err := repo.GetUserByEmail(ctx, email); err == nil {
		if byEmail.ID != userID {
			return fmt.Errorf("email %s already used by user %s", email, byEmail.ID)
		}
		return nil
	}

	user := &model.User{ID: userID, Email: email, CreatedAt: time.Now().UTC()}
	return repo.CreateUser(ctx, user)
}

func createAPIKey(t *testing.T, baseURL, bootstrapKey string) (string, string) {
	t.Helper()

	payload := map[string]any{
		"name":   "e2e-key",
		"scopes": []string{"read", "write", "send"},
	}

	var resp apiKeyCreateResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/api-keys", bootstrapKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from api key create, got %d", status)
	}
	if resp.Key == "" {
		t.Fatalf("api key response missing key")
	}
	userID := resp.UserID
	if userID == "" {
		userID = systemUserID
	}
	return resp.Key, userID
}

func creditWallet(t *testing.T, baseURL, adminKey, userID string, amountMicro int64) {
	t.Helper()

	payload := map[string]any{
		"amount_micro": amountMicro,
		"reason":       "e2e top-up",
	}

	var resp creditWalletResponse
	url := fmt.Sprintf("%s/api/v1/admin/wallets/%s/credit", baseURL, userID)
	status := doJSON(t, http.MethodPost, url, adminKey, payload, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from wallet credit, got %d", status)
	}
	if resp.BalanceMicro < amountMicro {
		t.Fatalf("expected balance >= %d after credit, got %d", amountMicro, resp.BalanceMicro)
	}
}

func submitSenderID(t *testing.T, baseURL, apiKey string) senderIDResponse {
	t.Helper()

	// Unique per run so reruns do not collide on the uniqueness constraint.
	name := fmt.Sprintf("E2E%07d", time.Now().UnixNano()%10_000_000)
	payload := map[string]any{
		"sender_id":      name,
		"purpose":        "e2e smoke traffic",
		"sample_message": "Your code is 123456",
		"company_name":   "E2E Testing Co",
	}

	var resp senderIDResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/sender-ids", apiKey, payload, &resp)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 from sender id submit, got %d", status)
	}
	if resp.ID == "" || resp.SenderID == "" {
		t.Fatalf("sender id submit response missing fields")
	}
	return resp
}

func approveSenderID(t *testing.T, baseURL, adminKey, id string) {
	t.Helper()

	payload := map[string]any{
		"status": "APPROVED",
		"notes":  "e2e approval",
	}

	var resp senderIDResponse
	url := fmt.Sprintf("%s/api/v1/admin/sender-ids/%s/status", baseURL, id)
	status := doJSON(t, http.MethodPut, url, adminKey, payload, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from sender id approval, got %d", status)
	}
	if resp.Status != "APPROVED" {
		t.Fatalf("expected APPROVED after resolve, got %s", resp.Status)
	}
}

func sendSMS(t *testing.T, baseURL, apiKey, from string) sendSMSResponse {
	t.Helper()

	payload := map[string]any{
		"to":      testRecipient,
		"from":    from,
		"message": "Hello from the e2e suite",
	}

	var resp sendSMSResponse
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/client/sms/send", apiKey, payload, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from sms send, got %d", status)
	}
	if resp.MessageID == "" || resp.Status != "sent" {
		t.Fatalf("sms send response missing fields: %+v", resp)
	}
	if resp.CostMicro <= 0 {
		t.Fatalf("expected positive cost, got %d", resp.CostMicro)
	}
	return resp
}

func assertSendRejected(t *testing.T, baseURL, apiKey, from string, wantStatus int) {
	t.Helper()

	payload := map[string]any{
		"to":      testRecipient,
		"from":    from,
		"message": "should not go out",
	}

	var errResp map[string]any
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/client/sms/send", apiKey, payload, &errResp)
	if status != wantStatus {
		t.Fatalf("expected %d for unapproved sender, got %d", wantStatus, status)
	}
	if errResp["code"] == nil {
		t.Fatalf("rejection response missing code field")
	}
}

func getWalletBalance(t *testing.T, baseURL, apiKey string) int64 {
	t.Helper()

	var resp walletResponse
	status := doJSON(t, http.MethodGet, baseURL+"/api/v1/client/wallet", apiKey, nil, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from wallet get, got %d", status)
	}
	return resp.BalanceMicro
}

// waitForUsage polls the usage summary until the async metering pipeline
// has recorded at least one request.
func waitForUsage(t *testing.T, baseURL, apiKey string) {
	t.Helper()

	endpoint := baseURL + "/api/v1/client/usage/summary"

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var resp usageSummaryResponse
		status := doJSON(t, http.MethodGet, endpoint, apiKey, nil, &resp)
		if status == http.StatusOK && resp.RequestCount >= 1 {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}

	t.Fatalf("usage summary did not report requests in time")
}

func doJSON(t *testing.T, method, url, apiKey string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}

// TestE2EOTPFlow validates OTP issue and the verify failure paths.
// The correct code only exists inside the SMS body, so the positive
// verify path is covered by unit tests against the cache instead.
func TestE2EOTPFlow(t *testing.T) {
	baseURL := envOrDefault("TEXTSHIP_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)
	testKey, testUserID := createAPIKey(t, baseURL, bootstrapKey)
	creditWallet(t, baseURL, bootstrapKey, testUserID, 10_000_000)

	sender := submitSenderID(t, baseURL, testKey)
	approveSenderID(t, baseURL, bootstrapKey, sender.ID)

	recipient := "+15550100300"
	payload := map[string]any{
		"to":   recipient,
		"from": sender.SenderID,
	}

	var issued struct {
		MessageID string `json:"message_id"`
		ExpiresAt string `json:"expires_at"`
	}
	status := doJSON(t, http.MethodPost, baseURL+"/api/v1/client/otp/send", testKey, payload, &issued)
	if status != http.StatusOK {
		t.Fatalf("expected 200 from otp send, got %d", status)
	}
	if issued.MessageID == "" || issued.ExpiresAt == "" {
		t.Fatalf("otp send response missing fields: %+v", issued)
	}

	// Wrong code must not verify.
	verifyPayload := map[string]any{"to": recipient, "code": "000000"}
	var errResp map[string]any
	status = doJSON(t, http.MethodPost, baseURL+"/api/v1/client/otp/verify", testKey, verifyPayload, &errResp)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong otp code, got %d", status)
	}

	// A recipient with no outstanding code is a 404.
	verifyPayload = map[string]any{"to": "+15550109999", "code": "123456"}
	status = doJSON(t, http.MethodPost, baseURL+"/api/v1/client/otp/verify", testKey, verifyPayload, &errResp)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown otp recipient, got %d", status)
	}
}

// TestE2ERateLimiting validates that rate limiting returns 429 with proper headers.
func TestE2ERateLimiting(t *testing.T) {
	baseURL := envOrDefault("TEXTSHIP_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	// Create a free-tier API key (60 RPM, 10 burst)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer repo.Close()

	if err := ensureUser(ctx, repo, systemUserID, systemEmail); err != nil {
		t.Fatalf("ensure user: %v", err)
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		t.Fatalf("generate api key: %v", err)
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        systemUserID,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        []string{model.ScopeRead},
		RateLimitTier: model.TierFree, // Free tier: 60 RPM, burst 10
		Name:          "e2e-ratelimit-test",
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		t.Fatalf("create free-tier api key: %v", err)
	}

	testKey := generated.Plaintext

	// Send requests until we hit rate limit
	client := &http.Client{Timeout: 10 * time.Second}
	var rateLimited bool
	var lastResp *http.Response

	// Free tier has burst of 10, try 20 requests rapidly
	for i := 0; i < 20; i++ {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/sender-ids", nil)
		if err != nil {
			t.Fatalf("create request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+testKey)

		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			lastResp = resp
			break
		}
		resp.Body.Close()
	}

	if !rateLimited {
		t.Fatalf("expected 429 rate limit after burst, but never hit rate limit")
	}

	defer lastResp.Body.Close()

	// Verify rate limit headers
	limitHeader := lastResp.Header.Get("X-RateLimit-Limit")
	remainingHeader := lastResp.Header.Get("X-RateLimit-Remaining")
	retryAfterHeader := lastResp.Header.Get("Retry-After")

	if limitHeader == "" {
		t.Error("missing X-RateLimit-Limit header on 429 response")
	}
	if remainingHeader != "0" {
		t.Errorf("expected X-RateLimit-Remaining=0, got %s", remainingHeader)
	}
	if retryAfterHeader == "" {
		t.Log("Retry-After header not present (optional but recommended)")
	}

	// Verify response body
	var errResp map[string]any
	if err := json.NewDecoder(lastResp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode 429 response: %v", err)
	}

	if errResp["error"] == nil {
		t.Error("429 response missing 'error' field")
	}
}

// TestE2ENoSecretsInLogs validates that API keys are not leaked in responses.
// This test validates that error responses don't echo back sensitive credentials.
func TestE2ENoSecretsInLogs(t *testing.T) {
	baseURL := envOrDefault("TEXTSHIP_BASE_URL", "http://localhost:8080")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	bootstrapKey := bootstrapAdminKey(t, dbURL)

	client := &http.Client{Timeout: 10 * time.Second}

	// Test that error responses don't leak the Authorization header value
	testKey := "pk_live_fake_" + strings.Repeat("x", 32)
	req, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/sender-ids", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testKey)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	bodyStr := string(body)

	// The fake API key should NEVER appear in error responses
	if strings.Contains(bodyStr, testKey) {
		t.Error("SECURITY: Error response leaked Authorization header value")
	}

	// The bootstrap key should never be echoed back
	if strings.Contains(bodyStr, bootstrapKey) {
		t.Error("SECURITY: Response contains the bootstrap API key")
	}

	// Test with a valid key - responses should not include the key itself
	req2, err := http.NewRequest(http.MethodGet, baseURL+"/api/v1/sender-ids", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req2.Header.Set("Authorization", "Bearer "+bootstrapKey)

	resp2, err := client.Do(req2)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	// The full API key should never appear in successful responses
	if strings.Contains(string(body2), bootstrapKey) {
		t.Error("SECURITY: Successful response echoed back the API key")
	}
}
