package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pharmaspot/internal/apperr"
)

type AskRequest struct {
	Message string `json:"message"`
}

// --- POST: /api/assistant/ask ---
func (h *Handler) AskAssistant(c *gin.Context) {
	if h.Assistant == nil {
		fail(c, apperr.New(http.StatusServiceUnavailable, "ASSISTANT_DISABLED", "The assistant is not configured"))
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		fail(c, apperr.Validation("Message is required"))
		return
	}

	reply, err := h.Assistant.Ask(c.Request.Context(), req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
