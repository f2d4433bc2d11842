package api

import (
	"trivia-api/internal/apperr"
	"trivia-api/internal/response"

	"github.com/gin-gonic/gin"
)

// DeleteUsersRequest represents a bulk delete request
type DeleteUsersRequest struct {
	UserIDs []string `json:"userIds"`
}

// DeleteUsers removes users from the identity provider and the ledger
func (h *Handlers) DeleteUsers(c *gin.Context) {
	var req DeleteUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserIDs == nil {
		response.Fail(c, apperr.New(apperr.InvalidArgument, "The function must be called with a 'userIds' array."))
		return
	}

	result, err := h.eraser.DeleteUsers(c.Request.Context(), req.UserIDs)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessJSON(c, result)
}
