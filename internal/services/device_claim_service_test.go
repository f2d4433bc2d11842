package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"trivia-api/internal/apperr"
	"trivia-api/internal/auth"
	"trivia-api/internal/store"
)

func deviceClaimed(t *testing.T, s *store.Store, deviceID string) bool {
	t.Helper()
	var found bool
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetDeviceClaim(ctx, deviceID)
		if errors.Is(err, store.ErrNotFound) {
			found = false
			return nil
		}
		found = err == nil
		return err
	})
	if err != nil {
		t.Fatalf("failed to read device claim: %v", err)
	}
	return found
}

func TestGrantInitialTokens(t *testing.T) {
	s := newTestStore()
	svc := NewDeviceClaimService(s, testConfig())
	caller := &auth.Principal{UserID: "user-1"}

	result, err := svc.GrantInitialTokens(context.Background(), caller, "device-1")
	if err != nil {
		t.Fatalf("GrantInitialTokens returned error: %v", err)
	}
	if result.Status != StatusOK || result.Message != "Initial tokens granted successfully." {
		t.Fatalf("unexpected result %+v", result)
	}

	balance, err := s.GetBalance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetBalance returned error: %v", err)
	}
	if balance.Tokens != 10 || !balance.HasClaimedInitialTokens {
		t.Fatalf("unexpected balance %+v", balance)
	}
	if !deviceClaimed(t, s, "device-1") {
		t.Fatal("expected device claim to be recorded")
	}
}

func TestGrantInitialTokensSameDeviceTwice(t *testing.T) {
	s := newTestStore()
	svc := NewDeviceClaimService(s, testConfig())
	ctx := context.Background()

	if _, err := svc.GrantInitialTokens(ctx, &auth.Principal{UserID: "user-1"}, "device-1"); err != nil {
		t.Fatalf("first grant returned error: %v", err)
	}

	_, err := svc.GrantInitialTokens(ctx, &auth.Principal{UserID: "user-2"}, "device-1")
	if apperr.KindOf(err) != apperr.AlreadyExists {
		t.Fatalf("expected already exists, got %v", err)
	}
	if apperr.MessageOf(err) != "Initial tokens have already been claimed for this device." {
		t.Fatalf("unexpected message %q", apperr.MessageOf(err))
	}
	if _, err := s.GetBalance(ctx, "user-2"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second user must not be credited, got %v", err)
	}
	if got := tokensOf(t, s, "user-1"); got != 10 {
		t.Fatalf("expected single grant of 10, got %d", got)
	}
}

func TestGrantInitialTokensUserAlreadyClaimed(t *testing.T) {
	s := newTestStore()
	seed(t, s, "user-1", 3, true)
	svc := NewDeviceClaimService(s, testConfig())

	_, err := svc.GrantInitialTokens(context.Background(), &auth.Principal{UserID: "user-1"}, "device-new")
	if apperr.KindOf(err) != apperr.AlreadyExists {
		t.Fatalf("expected already exists, got %v", err)
	}
	if apperr.MessageOf(err) != "Initial tokens have already been claimed for this user." {
		t.Fatalf("unexpected message %q", apperr.MessageOf(err))
	}
	if deviceClaimed(t, s, "device-new") {
		t.Fatal("no device claim may be recorded for a rejected grant")
	}
	if got := tokensOf(t, s, "user-1"); got != 3 {
		t.Fatalf("balance must be unchanged, got %d", got)
	}
}

func TestGrantInitialTokensOverwritesUnclaimedBalance(t *testing.T) {
	s := newTestStore()
	seed(t, s, "user-1", 50, false)
	svc := NewDeviceClaimService(s, testConfig())

	if _, err := svc.GrantInitialTokens(context.Background(), &auth.Principal{UserID: "user-1"}, "device-1"); err != nil {
		t.Fatalf("GrantInitialTokens returned error: %v", err)
	}
	if got := tokensOf(t, s, "user-1"); got != 10 {
		t.Fatalf("expected balance set to the grant amount, got %d", got)
	}
}

func TestGrantInitialTokensValidation(t *testing.T) {
	svc := NewDeviceClaimService(newTestStore(), testConfig())

	tests := []struct {
		name     string
		caller   *auth.Principal
		deviceID string
		wantKind apperr.Kind
	}{
		{name: "anonymous", caller: nil, deviceID: "device-1", wantKind: apperr.Unauthenticated},
		{name: "empty subject", caller: &auth.Principal{}, deviceID: "device-1", wantKind: apperr.Unauthenticated},
		{name: "missing device", caller: &auth.Principal{UserID: "user-1"}, deviceID: "", wantKind: apperr.InvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GrantInitialTokens(context.Background(), tt.caller, tt.deviceID)
			if err == nil || apperr.KindOf(err) != tt.wantKind {
				t.Fatalf("expected %s, got %v", tt.wantKind, err)
			}
		})
	}
}

func TestConcurrentGrantsSameDevice(t *testing.T) {
	s := newTestStore()
	svc := NewDeviceClaimService(s, testConfig())

	const callers = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GrantInitialTokens(context.Background(), &auth.Principal{UserID: "user-1"}, "device-1")
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
				return
			}
			if apperr.KindOf(err) != apperr.AlreadyExists {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if granted != 1 {
		t.Fatalf("expected exactly one grant, got %d", granted)
	}
	if got := tokensOf(t, s, "user-1"); got != 10 {
		t.Fatalf("expected 10 tokens, got %d", got)
	}
}
