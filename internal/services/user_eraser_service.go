package services

import (
	"context"
	"strings"

	"trivia-api/internal/apperr"
	"trivia-api/internal/config"
	"trivia-api/internal/identity"
	"trivia-api/pkg/logging"
)

// BalanceEraser deletes balance documents in one batch
type BalanceEraser interface {
	DeleteBalances(ctx context.Context, userIDs []string) (int64, error)
}

// UserEraserService removes users from the identity provider and the ledger
type UserEraserService struct {
	directory identity.Directory
	balances  BalanceEraser
	batchSize int
}

// NewUserEraserService creates a new user eraser service
func NewUserEraserService(directory identity.Directory, balances BalanceEraser, cfg *config.Config) *UserEraserService {
	batchSize := cfg.DeleteBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &UserEraserService{
		directory: directory,
		balances:  balances,
		batchSize: batchSize,
	}
}

// DeleteUsers deletes the identity records and balances of the given users.
// Blank ids are dropped first. Per-id identity failures are reported in the
// result and do not stop the balance deletion.
func (s *UserEraserService) DeleteUsers(ctx context.Context, userIDs []string) (*identity.DeleteResult, error) {
	valid := FilterUserIDs(userIDs)
	if len(valid) == 0 {
		return nil, apperr.New(apperr.InvalidArgument,
			"The function must be called with a 'userIds' array of strings containing at least one valid ID.")
	}

	result, err := s.directory.DeleteUsers(ctx, valid)
	if err != nil {
		logging.Error().Err(err).Int("count", len(valid)).Msg("Error deleting users")
		return nil, apperr.Wrap(apperr.Internal, "An error occurred while deleting users.", err)
	}

	var deleted int64
	for start := 0; start < len(valid); start += s.batchSize {
		end := min(start+s.batchSize, len(valid))
		n, err := s.balances.DeleteBalances(ctx, valid[start:end])
		if err != nil {
			logging.Error().Err(err).Int("batch_start", start).Int("batch_size", end-start).Msg("Error deleting user balances")
			return nil, apperr.Wrap(apperr.Internal, "An error occurred while deleting users.", err)
		}
		deleted += n
	}

	if result.FailureCount > 0 {
		logging.Warn().Interface("errors", result.Errors).Msgf("Failed to delete %d users.", result.FailureCount)
	}
	logging.Info().Int("requested", len(valid)).Int("success", result.SuccessCount).Int64("balances_deleted", deleted).
		Msg("Users deleted")
	return result, nil
}

// FilterUserIDs drops blank identifiers
func FilterUserIDs(userIDs []string) []string {
	valid := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if strings.TrimSpace(id) != "" {
			valid = append(valid, id)
		}
	}
	return valid
}
