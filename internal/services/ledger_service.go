package services

import (
	"context"
	"errors"

	"trivia-api/internal/apperr"
	"trivia-api/internal/models"
	"trivia-api/internal/store"
	"trivia-api/pkg/logging"
)

// Wallet result statuses
const (
	StatusOK                  = "ok"
	StatusInsufficientBalance = "insufficient_balance"
)

const (
	msgUserNotFound        = "User profile not found."
	msgInsufficientBalance = "Current balance is lower than the required tokens."
	msgTokensConsumed      = "Tokens consumed successfully."
)

// WalletResult is returned to the client for wallet operations
type WalletResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Ledger is the transactional document store behind the wallet
type Ledger interface {
	RunTransaction(ctx context.Context, fn store.TxFunc) error
	GetBalance(ctx context.Context, userID string) (*models.UserBalance, error)
}

// LedgerService maintains per-user token balances
type LedgerService struct {
	ledger Ledger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(ledger Ledger) *LedgerService {
	return &LedgerService{ledger: ledger}
}

// Consume deducts amount tokens from the user's balance. An insufficient
// balance is a result, not an error.
func (s *LedgerService) Consume(ctx context.Context, userID string, amount int64) (*WalletResult, error) {
	if userID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "The function must be called with a 'userId' argument.")
	}
	if amount <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "The 'numberOfTokens' argument must be a positive number.")
	}

	var result *WalletResult
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		balance, err := tx.GetBalance(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.NotFound, msgUserNotFound)
		}
		if err != nil {
			return err
		}

		if balance.Tokens < amount {
			result = &WalletResult{Status: StatusInsufficientBalance, Message: msgInsufficientBalance}
			return nil
		}

		balance.Tokens -= amount
		if err := tx.PutBalance(balance); err != nil {
			return err
		}
		result = &WalletResult{Status: StatusOK, Message: msgTokensConsumed}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			logging.Warn().Str("user_id", userID).Int64("amount", amount).Msg("Consume for unknown user")
			return nil, err
		}
		logging.Error().Err(err).Str("user_id", userID).Int64("amount", amount).Msg("Failed to consume tokens")
		return nil, apperr.Wrap(apperr.Internal, "Failed to consume tokens.", err)
	}

	logging.Info().Str("user_id", userID).Int64("amount", amount).Str("status", result.Status).Msg("Consume processed")
	return result, nil
}

// Credit adds amount tokens to the user's balance, creating it if needed.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64) (*models.UserBalance, error) {
	if userID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "A user id is required.")
	}
	if amount <= 0 {
		return nil, apperr.New(apperr.InvalidArgument, "The credited amount must be positive.")
	}

	var credited *models.UserBalance
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		balance, err := creditInTx(ctx, tx, userID, amount)
		credited = balance
		return err
	})
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Int64("amount", amount).Msg("Failed to credit tokens")
		return nil, apperr.Wrap(apperr.Internal, "Failed to credit tokens.", err)
	}
	return credited, nil
}

// Balance returns the user's current balance
func (s *LedgerService) Balance(ctx context.Context, userID string) (*models.UserBalance, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, msgUserNotFound)
	}
	if err != nil {
		logging.Error().Err(err).Str("user_id", userID).Msg("Failed to read balance")
		return nil, apperr.Wrap(apperr.Internal, "Failed to read balance.", err)
	}
	return balance, nil
}

// creditInTx adds amount to the balance inside a running transaction.
// It must be the last read of the transaction.
func creditInTx(ctx context.Context, tx store.Tx, userID string, amount int64) (*models.UserBalance, error) {
	balance, err := tx.GetBalance(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		balance = &models.UserBalance{UserID: userID}
	case err != nil:
		return nil, err
	}

	balance.Tokens += amount
	if err := tx.PutBalance(balance); err != nil {
		return nil, err
	}
	return balance, nil
}
