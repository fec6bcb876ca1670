// Package handler implements the HTTP JSON API on top of the repository
// and the extraction pipeline.
package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/database"
	"budget-tracker-backend/internal/extract"
	"budget-tracker-backend/internal/logging"
)

// Options carries the settings handlers need beyond their dependencies.
type Options struct {
	StoreBackend   string
	MaxUploadBytes int64
}

type Handler struct {
	repo      database.Repository
	extractor *extract.Extractor
	opts      Options
	logger    *slog.Logger
}

func New(repo database.Repository, extractor *extract.Extractor, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		repo:      repo,
		extractor: extractor,
		opts:      opts,
		logger:    slog.Default().With(logging.FieldComponent, logging.ComponentHTTP),
	}
}

// Register mounts every API route on rg.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)

	rg.GET("/projects", h.ListProjects)
	rg.POST("/projects", h.CreateProject)
	rg.GET("/projects/:id", h.GetProject)
	rg.DELETE("/projects/:id", h.DeleteProject)

	rg.GET("/projects/:id/categories", h.ListCategories)
	rg.POST("/projects/:id/categories", h.AddCategory)
	rg.DELETE("/categories/:id", h.DeleteCategory)

	rg.GET("/projects/:id/transactions", h.ListTransactions)
	rg.POST("/projects/:id/transactions", h.AddTransaction)
	rg.POST("/projects/:id/transactions/batch", h.AddTransactionsBatch)
	rg.PUT("/transactions/:id", h.UpdateTransaction)
	rg.DELETE("/transactions/:id", h.DeleteTransaction)

	rg.GET("/projects/:id/summary", h.Summary)
	rg.GET("/projects/:id/breakdown", h.Breakdown)

	rg.POST("/extract-data", h.ExtractData)
}
