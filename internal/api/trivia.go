package api

import (
	"trivia-api/internal/apperr"
	"trivia-api/internal/response"
	"trivia-api/internal/services"

	"github.com/gin-gonic/gin"
)

// GenerateQuestion generates trivia questions
func (h *Handlers) GenerateQuestion(c *gin.Context) {
	var req services.QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, apperr.New(apperr.InvalidArgument, "Invalid request format: "+err.Error()))
		return
	}

	questions, err := h.questions.Generate(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.SuccessJSON(c, questions)
}
