package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"budget-tracker-backend/internal/config"
	"budget-tracker-backend/internal/handler"
	"budget-tracker-backend/internal/middleware"
)

// Setup builds the gin engine with CORS, request tracing and every API
// route mounted under /api.
func Setup(cfg *config.Config, h *handler.Handler, logger *slog.Logger) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	r.Use(middleware.RequestID(), middleware.AccessLog(logger), middleware.Recovery(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h.Register(r.Group("/api"))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success":    false,
			"error":      "route not found",
			"request_id": middleware.GetRequestID(c),
		})
	})
	return r
}
