package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// --- GET: / ---
// Health check for the desktop shell: reports the app and whether the
// database answers.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, dbStatus, code := "ok", "up", http.StatusOK
	sqlDB, err := h.Store.DB().DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status, dbStatus, code = "degraded", "down", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"app":       h.AppName,
		"version":   h.Version,
		"database":  dbStatus,
		"assistant": h.Assistant != nil,
		"time":      h.now(),
	})
}
