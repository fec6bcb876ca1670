package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/logging"
)

// Health reports liveness plus AI and store status. It always answers 200.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	connected := true
	if err := h.repo.Ping(ctx); err != nil {
		connected = false
		h.logger.WarnContext(ctx, "store ping failed", logging.FieldBackend, h.opts.StoreBackend, logging.FieldError, err)
	}

	success(c, gin.H{
		"message":           "Budget Management API is running",
		"openai_configured": h.extractor.Configured(),
		"store_backend":     h.opts.StoreBackend,
		"store_connected":   connected,
	})
}
