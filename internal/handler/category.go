package handler

import (
	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/models"
)

func (h *Handler) ListCategories(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}

	var t models.TxType
	if raw := c.Query("type"); raw != "" {
		parsed, err := models.ParseTxType(raw)
		if err != nil {
			h.respondError(c, err, "project")
			return
		}
		t = parsed
	}

	categories, err := h.repo.ListCategories(c.Request.Context(), id, t)
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"categories": categories})
}

func (h *Handler) AddCategory(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	var req createCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	categoryID, err := h.repo.AddCategory(c.Request.Context(), id, req.Name, models.TxType(req.Type))
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"category_id": categoryID})
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := pathID(c, "category")
	if !ok {
		return
	}
	if err := h.repo.DeleteCategory(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "category")
		return
	}
	message(c, "Category deleted successfully")
}
