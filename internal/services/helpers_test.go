package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivia-api/internal/config"
	"trivia-api/internal/models"
	"trivia-api/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		InitialGrantTokens: 10,
		ProductTokens:      config.DefaultProductTokens,
		MaxQuestions:       20,
		QuestionTimeout:    time.Second,
		DeleteBatchSize:    500,
		Pricing: config.Pricing{
			InputPer1M:   0.50,
			OutputPer1M:  3.00,
			CachingPer1M: 0.05,
		},
	}
}

func newTestStore() *store.Store {
	return store.NewMemoryStore(store.Options{MaxAttempts: 200, RetryBackoff: time.Microsecond})
}

func seed(t *testing.T, s *store.Store, userID string, tokens int64, claimed bool) {
	t.Helper()
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetBalance(ctx, userID); !errors.Is(err, store.ErrNotFound) {
			return errors.New("balance already seeded")
		}
		return tx.PutBalance(&models.UserBalance{UserID: userID, Tokens: tokens, HasClaimedInitialTokens: claimed})
	})
	if err != nil {
		t.Fatalf("failed to seed %s: %v", userID, err)
	}
}

func tokensOf(t *testing.T, s *store.Store, userID string) int64 {
	t.Helper()
	balance, err := s.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to read balance of %s: %v", userID, err)
	}
	return balance.Tokens
}

// failingLedger fails every transaction
type failingLedger struct {
	Ledger
	err error
}

func (f *failingLedger) RunTransaction(context.Context, store.TxFunc) error {
	return f.err
}
