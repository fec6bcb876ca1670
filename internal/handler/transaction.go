package handler

import (
	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/logging"
	"budget-tracker-backend/internal/models"
)

func (h *Handler) ListTransactions(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	txs, err := h.repo.ListTransactions(c.Request.Context(), id, c.Query("month"))
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"transactions": txs})
}

func (h *Handler) AddTransaction(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	var req transactionRequest
	if !bindJSON(c, &req) {
		return
	}

	txID, err := h.repo.AddTransaction(c.Request.Context(), req.toModel(id))
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	success(c, gin.H{"transaction_id": txID})
}

// AddTransactionsBatch inserts every transaction in the body. On a storage
// failure part way through, the IDs already written are returned in the
// error body.
func (h *Handler) AddTransactionsBatch(c *gin.Context) {
	id, ok := pathID(c, "project")
	if !ok {
		return
	}
	var req batchRequest
	if !bindJSON(c, &req) {
		return
	}

	txs := make([]models.NewTransaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		txs = append(txs, t.toModel(id))
	}
	ids, err := h.repo.AddTransactionsBatch(c.Request.Context(), id, txs)
	if err != nil {
		h.respondError(c, err, "project")
		return
	}
	h.logger.InfoContext(c.Request.Context(), "transactions imported", logging.FieldProjectID, id, "count", len(ids))
	success(c, gin.H{"transaction_ids": ids})
}

func (h *Handler) UpdateTransaction(c *gin.Context) {
	id, ok := pathID(c, "transaction")
	if !ok {
		return
	}
	var req updateTransactionRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.repo.UpdateTransaction(c.Request.Context(), id, req.toPatch()); err != nil {
		h.respondError(c, err, "transaction")
		return
	}
	message(c, "Transaction updated successfully")
}

func (h *Handler) DeleteTransaction(c *gin.Context) {
	id, ok := pathID(c, "transaction")
	if !ok {
		return
	}
	if err := h.repo.DeleteTransaction(c.Request.Context(), id); err != nil {
		h.respondError(c, err, "transaction")
		return
	}
	message(c, "Transaction deleted successfully")
}
