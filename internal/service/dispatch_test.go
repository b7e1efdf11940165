package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/textship/textship/internal/billing"
	"github.com/textship/textship/internal/provider"
	"github.com/textship/textship/internal/repository"
)

// fakeSenderChecker answers approval checks from a fixed map.
type fakeSenderChecker struct {
	approved map[string]bool
	err      error
}

func (f *fakeSenderChecker) IsApprovedSender(_ context.Context, userID, value string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.approved[userID+":"+value], nil
}

// fakeWallet implements the conditional debit contract in memory.
type fakeWallet struct {
	mu      sync.Mutex
	balance int64
	debits  int
	credits int
}

func (f *fakeWallet) DebitBalance(_ context.Context, _ string, amountMicro int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balance < amountMicro {
		return f.balance, repository.ErrInsufficientBalance
	}
	f.balance -= amountMicro
	f.debits++
	return f.balance, nil
}

func (f *fakeWallet) CreditBalance(_ context.Context, _ string, amountMicro int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance += amountMicro
	f.credits++
	return f.balance, nil
}

// fakeProvider records calls and fails recipients listed in failures.
type fakeProvider struct {
	mu       sync.Mutex
	calls    []string
	failures map[string]error
}

func (f *fakeProvider) Send(_ context.Context, to, _, _ string) (*provider.SendResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, to)
	f.mu.Unlock()
	if err, ok := f.failures[to]; ok {
		return nil, err
	}
	return &provider.SendResult{MessageID: "msg-" + to, Status: "ok"}, nil
}

func newDispatchFixture(balance int64) (*DispatchService, *fakeWallet, *fakeProvider) {
	wallet := &fakeWallet{balance: balance}
	prov := &fakeProvider{failures: map[string]error{}}
	senders := &fakeSenderChecker{approved: map[string]bool{
		"user-1:ACMECORP": true,
	}}
	svc := NewDispatchService(senders, wallet, prov, billing.NewCalculator(billing.DefaultRates()), nil)
	return svc, wallet, prov
}

func TestSendPreconditionOrder(t *testing.T) {
	t.Parallel()

	svc, _, _ := newDispatchFixture(1_000_000_000)

	tests := []struct {
		name    string
		input   SendInput
		wantErr error
	}{
		{
			name:    "missing sender id",
			input:   SendInput{UserID: "user-1", To: "+15551230000", Message: "hi", From: ""},
			wantErr: ErrSenderIDMissing,
		},
		{
			name:    "invalid sender format beats approval check",
			input:   SendInput{UserID: "user-1", To: "+15551230000", Message: "hi", From: "BAD SENDER!"},
			wantErr: ErrSenderIDInvalidFormat,
		},
		{
			name:    "sender too long",
			input:   SendInput{UserID: "user-1", To: "+15551230000", Message: "hi", From: "TOOLONGSENDER"},
			wantErr: ErrSenderIDInvalidFormat,
		},
		{
			name:    "unregistered sender",
			input:   SendInput{UserID: "user-1", To: "+15551230000", Message: "hi", From: "NEWTEST456"},
			wantErr: ErrSenderIDNotApproved,
		},
		{
			name:    "sender approved for someone else",
			input:   SendInput{UserID: "user-2", To: "+15551230000", Message: "hi", From: "ACMECORP"},
			wantErr: ErrSenderIDNotApproved,
		},
		{
			name:    "empty message",
			input:   SendInput{UserID: "user-1", To: "+15551230000", Message: "", From: "ACMECORP"},
			wantErr: ErrEmptyMessage,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Send(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSendDebitsBeforeDispatch(t *testing.T) {
	t.Parallel()

	svc, wallet, prov := newDispatchFixture(1_000_000_000)

	out, err := svc.Send(context.Background(), SendInput{
		UserID: "user-1", To: "+15551230000", From: "ACMECORP", Message: "hello",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if out.CostMicro <= 0 {
		t.Errorf("CostMicro = %d, want positive", out.CostMicro)
	}
	if wallet.balance != 1_000_000_000-out.CostMicro {
		t.Errorf("balance = %d, want %d", wallet.balance, 1_000_000_000-out.CostMicro)
	}
	if wallet.debits != 1 || wallet.credits != 0 {
		t.Errorf("debits/credits = %d/%d, want 1/0", wallet.debits, wallet.credits)
	}
	if len(prov.calls) != 1 {
		t.Errorf("provider calls = %d, want 1", len(prov.calls))
	}
}

func TestSendInsufficientBalance(t *testing.T) {
	t.Parallel()

	svc, _, prov := newDispatchFixture(0)

	_, err := svc.Send(context.Background(), SendInput{
		UserID: "user-1", To: "+15551230000", From: "ACMECORP", Message: "hello",
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Send() error = %v, want ErrInsufficientBalance", err)
	}
	if len(prov.calls) != 0 {
		t.Error("provider must not be called when balance check fails")
	}
}

func TestSendRefundsOnProviderFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		providerErr error
		wantErr     error
	}{
		{"rejected", provider.ErrRejected, ErrUpstreamRejected},
		{"timeout", provider.ErrTimeout, ErrUpstreamTimeout},
		{"wrapped rejected", fmt.Errorf("call: %w", provider.ErrRejected), ErrUpstreamRejected},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, wallet, prov := newDispatchFixture(1_000_000_000)
			prov.failures["+15551230000"] = tt.providerErr

			_, err := svc.Send(context.Background(), SendInput{
				UserID: "user-1", To: "+15551230000", From: "ACMECORP", Message: "hello",
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Send() error = %v, want %v", err, tt.wantErr)
			}
			if wallet.balance != 1_000_000_000 {
				t.Errorf("balance = %d, want full refund to 1000000000", wallet.balance)
			}
			if wallet.credits != 1 {
				t.Errorf("credits = %d, want 1", wallet.credits)
			}
		})
	}
}

func TestSendConcurrentCannotOverdraw(t *testing.T) {
	t.Parallel()

	// Fund exactly one send; fire many concurrently. The conditional
	// debit must let exactly one through.
	svc, wallet, _ := newDispatchFixture(0)
	cost := billing.NewCalculator(billing.DefaultRates()).MessageCost(1, "hello")
	wallet.balance = cost

	const workers = 16
	var wg sync.WaitGroup
	sent := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Send(context.Background(), SendInput{
				UserID: "user-1", To: "+15551230000", From: "ACMECORP", Message: "hello",
			})
			sent <- err
		}()
	}
	wg.Wait()
	close(sent)

	var ok, insufficient int
	for err := range sent {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientBalance):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if ok != 1 || insufficient != workers-1 {
		t.Errorf("ok/insufficient = %d/%d, want 1/%d", ok, insufficient, workers-1)
	}
	if wallet.balance != 0 {
		t.Errorf("balance = %d, want 0", wallet.balance)
	}
}

func TestSendBulkPartialFailureRefund(t *testing.T) {
	t.Parallel()

	svc, wallet, prov := newDispatchFixture(1_000_000_000)
	prov.failures["+15551230002"] = provider.ErrRejected

	to := []string{"+15551230001", "+15551230002", "+15551230003"}
	out, err := svc.SendBulk(context.Background(), SendBulkInput{
		UserID: "user-1", To: to, From: "ACMECORP", Message: "hello",
	})
	if err != nil {
		t.Fatalf("SendBulk() error = %v", err)
	}

	if out.SentCount != 2 {
		t.Errorf("SentCount = %d, want 2", out.SentCount)
	}
	if len(out.Results) != 3 {
		t.Fatalf("Results = %d, want 3", len(out.Results))
	}
	if out.Results[1].Sent || out.Results[1].Error == "" {
		t.Errorf("failed recipient result = %+v", out.Results[1])
	}

	perRecipient := billing.NewCalculator(billing.DefaultRates()).MessageCost(1, "hello")
	wantBalance := 1_000_000_000 - 2*perRecipient
	if wallet.balance != wantBalance {
		t.Errorf("balance = %d, want %d (only accepted recipients billed)", wallet.balance, wantBalance)
	}
	if out.CostMicro != 2*perRecipient {
		t.Errorf("CostMicro = %d, want %d", out.CostMicro, 2*perRecipient)
	}
}

func TestSendBulkLimits(t *testing.T) {
	t.Parallel()

	svc, _, _ := newDispatchFixture(1_000_000_000)

	if _, err := svc.SendBulk(context.Background(), SendBulkInput{
		UserID: "user-1", To: nil, From: "ACMECORP", Message: "hello",
	}); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("empty recipients error = %v, want ErrNoRecipients", err)
	}

	to := make([]string, maxBulkRecipients+1)
	for i := range to {
		to[i] = fmt.Sprintf("+1555123%04d", i)
	}
	if _, err := svc.SendBulk(context.Background(), SendBulkInput{
		UserID: "user-1", To: to, From: "ACMECORP", Message: "hello",
	}); !errors.Is(err, ErrTooManyRecipients) {
		t.Errorf("oversized recipients error = %v, want ErrTooManyRecipients", err)
	}
}
