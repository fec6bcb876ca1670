package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/models"
)

func (h *Handler) Summary(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	summary, err := h.repo.MonthlySummary(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"summary": summary})
}

func (h *Handler) Breakdown(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	month, rawType := c.Query("month"), c.Query("type")
	if month == "" || rawType == "" {
		fail(c, http.StatusBadRequest, "month and type are required", nil)
		return
	}
	t, err := models.ParseTxType(rawType)
	if err != nil {
		h.respondError(c, err, "project")
		return
	}

	breakdown, err := h.repo.CategoryBreakdown(c.Request.Context(), id, month, t)
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"breakdown": breakdown})
}
