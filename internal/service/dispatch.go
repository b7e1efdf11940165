package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/textship/textship/internal/billing"
	"github.com/textship/textship/internal/metrics"
	"github.com/textship/textship/internal/provider"
	"github.com/textship/textship/internal/repository"
	"github.com/textship/textship/internal/senderid"
)

// Dispatch errors. Checks run in a fixed order and the first failure
// wins, so callers can rely on stable error codes.
var (
	ErrSenderIDNotApproved = errors.New("sender ID is not approved for this account")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrUpstreamRejected    = errors.New("upstream provider rejected the message")
	ErrUpstreamTimeout     = errors.New("upstream provider timed out")
	ErrNoRecipients        = errors.New("at least one recipient is required")
	ErrEmptyMessage        = errors.New("message body is required")
	ErrTooManyRecipients   = errors.New("too many recipients")
)

const maxBulkRecipients = 100

// WalletRepository is the balance surface dispatch needs.
type WalletRepository interface {
	DebitBalance(ctx context.Context, userID string, amountMicro int64) (int64, error)
	CreditBalance(ctx context.Context, userID string, amountMicro int64) (int64, error)
}

// SenderChecker answers whether a sender ID may be used by a user.
type SenderChecker interface {
	IsApprovedSender(ctx context.Context, userID, value string) (bool, error)
}

// SMSProvider is the upstream delivery surface.
type SMSProvider interface {
	Send(ctx context.Context, to, from, message string) (*provider.SendResult, error)
}

// DispatchService forwards SMS through the upstream provider after the
// full precondition chain passes. Order is fixed: sender presence,
// sender format, sender approval, balance. Authentication runs earlier,
// in middleware.
type DispatchService struct {
	senders  SenderChecker
	wallet   WalletRepository
	provider SMSProvider
	calc     *billing.Calculator
	metrics  metrics.Recorder
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(senders SenderChecker, wallet WalletRepository, smsProvider SMSProvider, calc *billing.Calculator, recorder metrics.Recorder) *DispatchService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if calc == nil {
		calc = billing.NewCalculator(billing.DefaultRates())
	}
	return &DispatchService{
		senders:  senders,
		wallet:   wallet,
		provider: smsProvider,
		calc:     calc,
		metrics:  recorder,
	}
}

// SendInput defines input for a single-recipient send.
type SendInput struct {
	UserID  string
	To      string
	From    string
	Message string
}

// SendOutput describes an accepted dispatch.
type SendOutput struct {
	MessageID string
	To        string
	From      string
	Segments  int
	CostMicro int64
}

// Send dispatches one message to one recipient. The wallet is debited
// before the upstream call; any upstream failure refunds the debit in
// full. Send never retries upstream failures.
func (s *DispatchService) Send(ctx context.Context, input SendInput) (*SendOutput, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveDispatchDuration(time.Since(start))
	}()

	if input.To == "" {
		return nil, ErrNoRecipients
	}
	if input.Message == "" {
		return nil, ErrEmptyMessage
	}

	if err := s.checkSender(ctx, input.UserID, input.From); err != nil {
		return nil, err
	}

	cost := s.calc.MessageCost(1, input.Message)
	if _, err := s.wallet.DebitBalance(ctx, input.UserID, cost); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	result, err := s.provider.Send(ctx, input.To, input.From, input.Message)
	if err != nil {
		// Money only leaves the wallet for accepted messages.
		if _, refundErr := s.wallet.CreditBalance(ctx, input.UserID, cost); refundErr != nil {
			return nil, fmt.Errorf("refund after dispatch failure: %w", refundErr)
		}
		return nil, s.mapProviderError(err)
	}

	s.metrics.IncSMSDispatched("sent")

	return &SendOutput{
		MessageID: result.MessageID,
		To:        input.To,
		From:      input.From,
		Segments:  billing.Segments(input.Message),
		CostMicro: cost,
	}, nil
}

// SendBulkInput defines input for a multi-recipient send.
type SendBulkInput struct {
	UserID  string
	To      []string
	From    string
	Message string
}

// BulkRecipientResult describes the outcome for one recipient.
type BulkRecipientResult struct {
	To        string
	MessageID string
	Sent      bool
	Error     string
}

// SendBulkOutput summarizes a bulk dispatch.
type SendBulkOutput struct {
	Results   []BulkRecipientResult
	SentCount int
	CostMicro int64
	Segments  int
}

// SendBulk dispatches one message to many recipients. The full
// estimated cost is reserved up-front with a single conditional debit,
// then refunded per recipient that the provider does not accept.
func (s *DispatchService) SendBulk(ctx context.Context, input SendBulkInput) (*SendBulkOutput, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveDispatchDuration(time.Since(start))
	}()

	if len(input.To) == 0 {
		return nil, ErrNoRecipients
	}
	if len(input.To) > maxBulkRecipients {
		return nil, ErrTooManyRecipients
	}
	if input.Message == "" {
		return nil, ErrEmptyMessage
	}

	if err := s.checkSender(ctx, input.UserID, input.From); err != nil {
		return nil, err
	}

	perRecipient := s.calc.MessageCost(1, input.Message)
	total := perRecipient * int64(len(input.To))
	if _, err := s.wallet.DebitBalance(ctx, input.UserID, total); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	out := &SendBulkOutput{
		Results:  make([]BulkRecipientResult, 0, len(input.To)),
		Segments: billing.Segments(input.Message),
	}

	var refund int64
	for _, to := range input.To {
		result, err := s.provider.Send(ctx, to, input.From, input.Message)
		if err != nil {
			refund += perRecipient
			mapped := s.mapProviderError(err)
			out.Results = append(out.Results, BulkRecipientResult{
				To:    to,
				Error: mapped.Error(),
			})
			continue
		}
		s.metrics.IncSMSDispatched("sent")
		out.SentCount++
		out.Results = append(out.Results, BulkRecipientResult{
			To:        to,
			MessageID: result.MessageID,
			Sent:      true,
		})
	}

	if refund > 0 {
		if _, err := s.wallet.CreditBalance(ctx, input.UserID, refund); err != nil {
			return nil, fmt.Errorf("refund after partial bulk failure: %w", err)
		}
	}

	out.CostMicro = total - refund
	return out, nil
}

// checkSender runs precondition checks 2 through 4 in order.
func (s *DispatchService) checkSender(ctx context.Context, userID, from string) error {
	switch senderid.Validate(from) {
	case senderid.Missing:
		return ErrSenderIDMissing
	case senderid.InvalidFormat:
		return ErrSenderIDInvalidFormat
	}

	approved, err := s.senders.IsApprovedSender(ctx, userID, from)
	if err != nil {
		return fmt.Errorf("failed to check sender ID: %w", err)
	}
	if !approved {
		return ErrSenderIDNotApproved
	}
	return nil
}

func (s *DispatchService) mapProviderError(err error) error {
	switch {
	case errors.Is(err, provider.ErrTimeout):
		s.metrics.IncSMSDispatched("timeout")
		return ErrUpstreamTimeout
	case errors.Is(err, provider.ErrRejected):
		s.metrics.IncSMSDispatched("rejected")
		return ErrUpstreamRejected
	}
	s.metrics.IncSMSDispatched("rejected")
	return fmt.Errorf("%w: %v", ErrUpstreamRejected, err)
}
