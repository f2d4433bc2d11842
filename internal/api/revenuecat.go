package api

import (
	"encoding/json"
	"net/http"
	"time"

	"trivia-api/internal/middleware"
	"trivia-api/internal/models"
	"trivia-api/pkg/logging"

	"github.com/gin-gonic/gin"
)

// RevenueCatWebhook applies a RevenueCat purchase notification.
// 200 stops redelivery, 500 asks for it, 400 and 401 are terminal.
func (h *Handlers) RevenueCatWebhook(c *gin.Context) {
	startTime := time.Now()

	expected := h.cfg.RevenueCatAuthHeader
	if expected == "" || !middleware.SecureCompare(c.GetHeader("Authorization"), expected) {
		logging.Warnf("RevenueCat webhook rejected: invalid authorization header")
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "Unauthorized",
		})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		logging.Errorf("Failed to read request body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to read request body",
		})
		return
	}

	var payload models.RevenueCatWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		logging.Error().Err(err).Str("payload", string(body)).Msg("Failed to parse RevenueCat webhook")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid webhook format",
		})
		return
	}

	result := h.purchases.ProcessPurchase(c.Request.Context(), payload.Event)
	if result.Err != nil {
		logging.Error().Err(result.Err).Str("payload", string(body)).Msg("RevenueCat webhook will be retried")
	}

	logging.Info().
		Str("event_id", result.EventID).
		Str("outcome", result.Outcome.String()).
		Dur("duration", time.Since(startTime)).
		Msg("RevenueCat webhook handled")

	c.JSON(result.Outcome.StatusCode(), gin.H{
		"success": result.Outcome.StatusCode() == http.StatusOK,
		"outcome": result.Outcome.String(),
		"message": webhookMessage(result.Outcome.String(), result.Reason),
	})
}

func webhookMessage(outcome, reason string) string {
	if reason == "" {
		return outcome
	}
	return outcome + ": " + reason
}
