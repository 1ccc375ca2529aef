package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/dtos"
	"github.com/justsurfingit/resume-builder/internal/services"
	"go.uber.org/zap"
)

// AIHandler exposes the writing assistant used by the rich text editor.
type AIHandler struct {
	LLMService *services.LLMService
	Log        *zap.Logger
}

func NewAIHandler(llm *services.LLMService, log *zap.Logger) *AIHandler {
	return &AIHandler{LLMService: llm, Log: log}
}

// Improve is the POST /ai/improve endpoint
func (h *AIHandler) Improve(c *gin.Context) {
	var req dtos.ImproveTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	text, err := h.LLMService.Improve(c.Request.Context(), req.Action, req.Text, req.Tone)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"text":    text,
	})
}
