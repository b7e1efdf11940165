package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/textship/textship/internal/cache"
	"github.com/textship/textship/internal/metrics"
)

// OTP errors.
var (
	// ErrOTPNotFound covers expired, consumed, never-issued and
	// attempt-exhausted codes alike; callers cannot distinguish them.
	ErrOTPNotFound  = errors.New("no active verification code")
	ErrOTPMismatch  = errors.New("verification code does not match")
	ErrOTPBadLength = errors.New("otp length out of range")
)

const (
	minOTPLength = 4
	maxOTPLength = 10
	minOTPTTL    = 30 * time.Second
	maxOTPTTL    = 30 * time.Minute
)

// OTPStore is the Redis surface for code digests.
type OTPStore interface {
	StoreOTP(ctx context.Context, userID, to, code string, ttl time.Duration) error
	VerifyOTP(ctx context.Context, userID, to, code string, maxAttempts int) error
}

// Dispatcher delivers the code through the SMS gateway. All dispatch
// preconditions and billing apply to OTP traffic.
type Dispatcher interface {
	Send(ctx context.Context, input SendInput) (*SendOutput, error)
}

// OTPService issues and verifies one-time passwords.
type OTPService struct {
	store       OTPStore
	dispatcher  Dispatcher
	length      int
	ttl         time.Duration
	maxAttempts int
	metrics     metrics.Recorder
}

// NewOTPService creates a new OTPService with default code parameters.
func NewOTPService(store OTPStore, dispatcher Dispatcher, length int, ttl time.Duration, maxAttempts int, recorder metrics.Recorder) *OTPService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if length < minOTPLength || length > maxOTPLength {
		length = 6
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &OTPService{
		store:       store,
		dispatcher:  dispatcher,
		length:      length,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		metrics:     recorder,
	}
}

// IssueInput defines input for issuing a code.
type IssueInput struct {
	UserID string
	To     string
	From   string
	// Length and TTL override the service defaults when non-zero.
	Length int
	TTL    time.Duration
}

// IssueOutput describes an issued code. The code itself is only ever
// delivered over SMS.
type IssueOutput struct {
	MessageID string
	ExpiresAt time.Time
	CostMicro int64
}

// Issue generates a numeric code, sends it through the dispatch
// gateway and stores its digest. A failed dispatch stores nothing, so
// an unpaid code can never verify. Reissuing replaces any previous
// code for the same recipient.
func (s *OTPService) Issue(ctx context.Context, input IssueInput) (*IssueOutput, error) {
	length := s.length
	if input.Length != 0 {
		if input.Length < minOTPLength || input.Length > maxOTPLength {
			return nil, ErrOTPBadLength
		}
		length = input.Length
	}
	ttl := s.ttl
	if input.TTL != 0 {
		if input.TTL < minOTPTTL || input.TTL > maxOTPTTL {
			ttl = s.ttl
		} else {
			ttl = input.TTL
		}
	}

	code, err := generateNumericCode(length)
	if err != nil {
		return nil, fmt.Errorf("failed to generate otp: %w", err)
	}

	message := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(ttl.Minutes()))
	if ttl < time.Minute {
		message = fmt.Sprintf("Your verification code is %s. It expires in %d seconds.", code, int(ttl.Seconds()))
	}

	sent, err := s.dispatcher.Send(ctx, SendInput{
		UserID:  input.UserID,
		To:      input.To,
		From:    input.From,
		Message: message,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.StoreOTP(ctx, input.UserID, input.To, code, ttl); err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}

	s.metrics.IncOTPIssued()

	return &IssueOutput{
		MessageID: sent.MessageID,
		ExpiresAt: time.Now().UTC().Add(ttl),
		CostMicro: sent.CostMicro,
	}, nil
}

// Verify checks a submitted code. Success consumes the code; repeated
// mismatches invalidate it after the attempt budget is spent.
func (s *OTPService) Verify(ctx context.Context, userID, to, code string) error {
	if code == "" {
		s.metrics.IncOTPVerified("mismatch")
		return ErrOTPMismatch
	}

	err := s.store.VerifyOTP(ctx, userID, to, code, s.maxAttempts)
	switch {
	case err == nil:
		s.metrics.IncOTPVerified("success")
		return nil
	case errors.Is(err, cache.ErrOTPNotFound):
		s.metrics.IncOTPVerified("not_found")
		return ErrOTPNotFound
	case errors.Is(err, cache.ErrOTPMismatch):
		s.metrics.IncOTPVerified("mismatch")
		return ErrOTPMismatch
	}
	return fmt.Errorf("failed to verify otp: %w", err)
}

// generateNumericCode returns a random numeric string of the given
// length using crypto/rand. Leading zeros are allowed.
func generateNumericCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
