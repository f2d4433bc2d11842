package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"trivia-api/internal/config"
	"trivia-api/internal/models"
	"trivia-api/internal/store"
	"trivia-api/pkg/logging"
)

// PurchaseOutcome is what happened to one purchase notification. Each outcome
// maps to the status code that tells the sender whether to retry.
type PurchaseOutcome int

const (
	// PurchaseApplied means the tokens were credited by this delivery
	PurchaseApplied PurchaseOutcome = iota + 1
	// PurchaseAlreadyProcessed means an earlier delivery already credited the event
	PurchaseAlreadyProcessed
	// PurchaseSkippedUnrecognized means the product credits no tokens
	PurchaseSkippedUnrecognized
	// PurchaseRejected means the notification is malformed and a retry cannot help
	PurchaseRejected
	// PurchaseTransientFailure means the ledger could not be updated, the sender should retry
	PurchaseTransientFailure
)

func (o PurchaseOutcome) String() string {
	switch o {
	case PurchaseApplied:
		return "applied"
	case PurchaseAlreadyProcessed:
		return "already_processed"
	case PurchaseSkippedUnrecognized:
		return "skipped_unrecognized"
	case PurchaseRejected:
		return "rejected"
	case PurchaseTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// StatusCode maps the outcome to the webhook response status
func (o PurchaseOutcome) StatusCode() int {
	switch o {
	case PurchaseApplied, PurchaseAlreadyProcessed, PurchaseSkippedUnrecognized:
		return http.StatusOK
	case PurchaseRejected:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PurchaseResult describes the handling of one notification
type PurchaseResult struct {
	Outcome        PurchaseOutcome
	EventID        string
	UserID         string
	ProductID      string
	TokensCredited int64
	Reason         string // set for skipped, rejected and failed outcomes
	Err            error  // set for transient failures
}

// PurchaseService applies RevenueCat purchase notifications to the ledger at most once per event id
type PurchaseService struct {
	ledger        Ledger
	productTokens map[string]int64
	now           func() time.Time
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(ledger Ledger, cfg *config.Config) *PurchaseService {
	table := make(map[string]int64, len(cfg.ProductTokens))
	for productID, tokens := range cfg.ProductTokens {
		table[productID] = tokens
	}
	return &PurchaseService{
		ledger:        ledger,
		productTokens: table,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// TokensForProduct returns the tokens credited by a product
func (s *PurchaseService) TokensForProduct(productID string) (int64, bool) {
	tokens, ok := s.productTokens[productID]
	return tokens, ok
}

// ProcessPurchase credits the tokens of a purchase unless its event id was already processed.
func (s *PurchaseService) ProcessPurchase(ctx context.Context, event *models.RevenueCatEvent) PurchaseResult {
	if event == nil {
		logging.Warnf("Purchase webhook without event")
		return PurchaseResult{Outcome: PurchaseRejected, Reason: "missing event"}
	}

	result := PurchaseResult{
		EventID:   event.ID,
		UserID:    event.AppUserID,
		ProductID: event.ProductID,
	}

	tokens, ok := s.TokensForProduct(event.ProductID)
	if !ok {
		logging.Info().Str("event_id", event.ID).Str("product_id", event.ProductID).Str("event_type", event.Type).
			Msg("Skipping purchase of unrecognized product")
		result.Outcome = PurchaseSkippedUnrecognized
		result.Reason = fmt.Sprintf("product %q credits no tokens", event.ProductID)
		return result
	}

	if event.ID == "" || event.AppUserID == "" {
		logging.Warn().Str("event_id", event.ID).Str("app_user_id", event.AppUserID).Str("product_id", event.ProductID).
			Msg("Purchase event missing id or app_user_id")
		result.Outcome = PurchaseRejected
		result.Reason = "event id and app_user_id are required"
		return result
	}

	applied := false
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		applied = false

		_, err := tx.GetProcessedEvent(ctx, event.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if _, err := creditInTx(ctx, tx, event.AppUserID, tokens); err != nil {
			return err
		}
		if err := tx.CreateProcessedEvent(&models.ProcessedEvent{
			EventID:        event.ID,
			EventType:      event.Type,
			ProductID:      event.ProductID,
			UserID:         event.AppUserID,
			TokensCredited: tokens,
			PurchasedAt:    event.PurchasedAt(),
			ProcessedAt:    s.now(),
		}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Str("user_id", event.AppUserID).Str("product_id", event.ProductID).
			Msg("Failed to process purchase")
		result.Outcome = PurchaseTransientFailure
		result.Reason = "ledger update failed"
		result.Err = err
		return result
	}

	if !applied {
		logging.Info().Str("event_id", event.ID).Msg("Purchase event already processed")
		result.Outcome = PurchaseAlreadyProcessed
		return result
	}

	logging.Info().Str("event_id", event.ID).Str("user_id", event.AppUserID).Str("product_id", event.ProductID).
		Int64("tokens", tokens).Msg("Purchase credited")
	result.Outcome = PurchaseApplied
	result.TokensCredited = tokens
	return result
}
