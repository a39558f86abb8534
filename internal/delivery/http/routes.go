package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/draftlens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, logger zerolog.Logger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	v1.Use(BodyLimitMiddleware(cfg.Server.MaxBodyBytes))
	{
		drafts := v1.Group("/drafts")
		{
			drafts.POST("/analyze", handler.AnalyzeDraft)
			drafts.GET("/:id", handler.GetDraft)
			drafts.PUT("/:id/text", handler.UpdateDraftText)
			drafts.POST("/:id/enrich", handler.EnrichDraft)
			drafts.GET("/:id/variant-request", handler.SuggestVariants)
		}

		v1.POST("/variants/generate", handler.GenerateVariants)

		products := v1.Group("/products")
		{
			products.PUT("/:productId/variants", handler.PersistVariants)
			products.GET("/:productId/variants", handler.ListVariants)
		}
	}

	return router
}
