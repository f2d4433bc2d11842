package services

import (
	"context"
	"errors"
	"time"

	"trivia-api/internal/apperr"
	"trivia-api/internal/auth"
	"trivia-api/internal/config"
	"trivia-api/internal/models"
	"trivia-api/internal/store"
	"trivia-api/pkg/logging"
)

const (
	msgDeviceAlreadyClaimed = "Initial tokens have already been claimed for this device."
	msgUserAlreadyClaimed   = "Initial tokens have already been claimed for this user."
	msgInitialTokensGranted = "Initial tokens granted successfully."
)

// DeviceClaimService issues the one-time initial token grant
type DeviceClaimService struct {
	ledger      Ledger
	grantAmount int64
	now         func() time.Time
}

// NewDeviceClaimService creates a new device claim service
func NewDeviceClaimService(ledger Ledger, cfg *config.Config) *DeviceClaimService {
	return &DeviceClaimService{
		ledger:      ledger,
		grantAmount: cfg.InitialGrantTokens,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GrantInitialTokens credits the initial grant once per device and once per user.
func (s *DeviceClaimService) GrantInitialTokens(ctx context.Context, caller *auth.Principal, deviceID string) (*WalletResult, error) {
	if caller == nil || caller.UserID == "" {
		return nil, apperr.New(apperr.Unauthenticated, "The function must be called while authenticated.")
	}
	if deviceID == "" {
		return nil, apperr.New(apperr.InvalidArgument, "The function must be called with a 'deviceId' argument.")
	}
	userID := caller.UserID

	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetDeviceClaim(ctx, deviceID)
		if err == nil {
			return apperr.New(apperr.AlreadyExists, msgDeviceAlreadyClaimed)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		balance, err := tx.GetBalance(ctx, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			balance = &models.UserBalance{UserID: userID}
		case err != nil:
			return err
		case balance.HasClaimedInitialTokens:
			return apperr.New(apperr.AlreadyExists, msgUserAlreadyClaimed)
		}

		if err := tx.CreateDeviceClaim(&models.DeviceClaim{
			DeviceID:  deviceID,
			UserID:    userID,
			ClaimedAt: s.now(),
		}); err != nil {
			return err
		}

		// Set, not add: the grant replaces whatever the record held
		balance.Tokens = s.grantAmount
		balance.HasClaimedInitialTokens = true
		return tx.PutBalance(balance)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.AlreadyExists {
			logging.Warn().Str("user_id", userID).Str("device_id", deviceID).Msg(apperr.MessageOf(err))
			return nil, err
		}
		logging.Error().Err(err).Str("user_id", userID).Str("device_id", deviceID).Msg("Failed to grant initial tokens")
		return nil, apperr.Wrap(apperr.Internal, "Failed to grant initial tokens.", err)
	}

	logging.Info().Str("user_id", userID).Str("device_id", deviceID).Int64("tokens", s.grantAmount).Msg("Initial tokens granted")
	return &WalletResult{Status: StatusOK, Message: msgInitialTokensGranted}, nil
}
