package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trivia-api/internal/apperr"
)

func TestConsume(t *testing.T) {
	tests := []struct {
		name       string
		balance    int64
		amount     int64
		wantStatus string
		wantAfter  int64
	}{
		{name: "partial", balance: 10, amount: 3, wantStatus: StatusOK, wantAfter: 7},
		{name: "exact", balance: 5, amount: 5, wantStatus: StatusOK, wantAfter: 0},
		{name: "insufficient", balance: 2, amount: 3, wantStatus: StatusInsufficientBalance, wantAfter: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			seed(t, s, "user-1", tt.balance, false)
			svc := NewLedgerService(s)

			result, err := svc.Consume(context.Background(), "user-1", tt.amount)
			if err != nil {
				t.Fatalf("Consume returned error: %v", err)
			}
			if result.Status != tt.wantStatus {
				t.Fatalf("expected status %q, got %q", tt.wantStatus, result.Status)
			}
			if got := tokensOf(t, s, "user-1"); got != tt.wantAfter {
				t.Fatalf("expected balance %d, got %d", tt.wantAfter, got)
			}
		})
	}
}

func TestConsumeMessages(t *testing.T) {
	s := newTestStore()
	seed(t, s, "user-1", 1, false)
	svc := NewLedgerService(s)

	result, err := svc.Consume(context.Background(), "user-1", 2)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if result.Message != "Current balance is lower than the required tokens." {
		t.Fatalf("unexpected message %q", result.Message)
	}

	result, err = svc.Consume(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("Consume returned error: %v", err)
	}
	if result.Message != "Tokens consumed successfully." {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestConsumeErrors(t *testing.T) {
	s := newTestStore()
	seed(t, s, "user-1", 10, false)
	svc := NewLedgerService(s)

	tests := []struct {
		name     string
		userID   string
		amount   int64
		wantKind apperr.Kind
	}{
		{name: "zero amount", userID: "user-1", amount: 0, wantKind: apperr.InvalidArgument},
		{name: "negative amount", userID: "user-1", amount: -1, wantKind: apperr.InvalidArgument},
		{name: "missing user id", userID: "", amount: 1, wantKind: apperr.InvalidArgument},
		{name: "unknown user", userID: "ghost", amount: 1, wantKind: apperr.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Consume(context.Background(), tt.userID, tt.amount)
			if got := apperr.KindOf(err); err == nil || got != tt.wantKind {
				t.Fatalf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}

	if got := tokensOf(t, s, "user-1"); got != 10 {
		t.Fatalf("balance changed by rejected calls: %d", got)
	}
}

func TestConsumeStoreFailureIsInternal(t *testing.T) {
	svc := NewLedgerService(&failingLedger{err: errors.New("connection reset")})

	_, err := svc.Consume(context.Background(), "user-1", 1)
	if apperr.KindOf(err) != apperr.Internal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestConcurrentConsumeNeverOverdraws(t *testing.T) {
	s := newTestStore()
	seed(t, s, "user-1", 10, false)
	svc := NewLedgerService(s)

	// 8 callers of 3 tokens against 10: exactly 3 fit
	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	statuses := map[string]int{}
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Consume(context.Background(), "user-1", 3)
			if err != nil {
				t.Errorf("Consume returned error: %v", err)
				return
			}
			mu.Lock()
			statuses[result.Status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if statuses[StatusOK] != 3 || statuses[StatusInsufficientBalance] != callers-3 {
		t.Fatalf("unexpected outcomes: %v", statuses)
	}
	if got := tokensOf(t, s, "user-1"); got != 1 {
		t.Fatalf("expected 1 token left, got %d", got)
	}
}

func TestCredit(t *testing.T) {
	s := newTestStore()
	svc := NewLedgerService(s)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, "user-1", 20); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if got := tokensOf(t, s, "user-1"); got != 20 {
		t.Fatalf("expected new balance of 20, got %d", got)
	}

	if _, err := svc.Credit(ctx, "user-1", 5); err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if got := tokensOf(t, s, "user-1"); got != 25 {
		t.Fatalf("expected 25, got %d", got)
	}

	if _, err := svc.Credit(ctx, "user-1", 0); apperr.KindOf(err) != apperr.InvalidArgument {
		t.Fatalf("expected invalid argument for zero credit, got %v", err)
	}
}

func TestBalance(t *testing.T) {
	s := newTestStore()
	seed(t, s, "user-1", 4, true)
	svc := NewLedgerService(s)

	balance, err := svc.Balance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if balance.Tokens != 4 || !balance.HasClaimedInitialTokens {
		t.Fatalf("unexpected balance %+v", balance)
	}

	if _, err := svc.Balance(context.Background(), "ghost"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
