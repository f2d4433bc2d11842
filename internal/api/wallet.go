package api

import (
	"encoding/json"
	"math"

	"trivia-api/internal/apperr"
	"trivia-api/internal/middleware"
	"trivia-api/internal/response"

	"github.com/gin-gonic/gin"
)

// ConsumeTokensRequest represents a consume request
type ConsumeTokensRequest struct {
	UserID         string      `json:"userId"`
	NumberOfTokens json.Number `json:"numberOfTokens"`
}

// GrantInitialTokensRequest represents an initial grant request
type GrantInitialTokensRequest struct {
	DeviceID string `json:"deviceId"`
}

// BalanceResponse represents the caller's wallet
type BalanceResponse struct {
	UserID                  string `json:"userId"`
	Tokens                  int64  `json:"tokens"`
	HasClaimedInitialTokens bool   `json:"hasClaimedInitialTokens"`
}

// ConsumeTokens deducts tokens from a user's balance
func (h *Handlers) ConsumeTokens(c *gin.Context) {
	var req ConsumeTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request format: "+err.Error()))
		return
	}

	amount, err := parseTokenAmount(req.NumberOfTokens)
	if err != nil {
		response.Fail(c, err)
		return
	}

	result, err := h.ledger.Consume(c.Request.Context(), req.UserID, amount)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessJSON(c, result)
}

// GrantInitialTokens credits the one-time initial grant to the caller
func (h *Handlers) GrantInitialTokens(c *gin.Context) {
	var req GrantInitialTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request format: "+err.Error()))
		return
	}

	result, err := h.claims.GrantInitialTokens(c.Request.Context(), middleware.PrincipalFrom(c), req.DeviceID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessJSON(c, result)
}

// GetBalance returns the caller's balance
func (h *Handlers) GetBalance(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	if principal == nil {
		response.Fail(c, apperr.New(apperr.Unauthenticated, "The function must be called while authenticated."))
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessJSON(c, BalanceResponse{
		UserID:                  balance.UserID,
		Tokens:                  balance.Tokens,
		HasClaimedInitialTokens: balance.HasClaimedInitialTokens,
	})
}

// parseTokenAmount accepts positive whole numbers, including 3.0
func parseTokenAmount(n json.Number) (int64, error) {
	invalid := apperr.New(apperr.InvalidArgument, "The 'numberOfTokens' argument must be a positive number.")
	if n == "" {
		return 0, invalid
	}
	f, err := n.Float64()
	if err != nil || f <= 0 || f != math.Trunc(f) || f > math.MaxInt64/2 {
		return 0, invalid
	}
	return int64(f), nil
}
