package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flipfinder/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, metrics *Metrics, logger *zap.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	if metrics != nil {
		router.Use(metrics.Middleware())
	}
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)
	if metrics != nil {
		router.GET("/metrics", metrics.Handler())
	}

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		api.POST("/auth/login", handler.Login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(handler.auth, handler))
		{
			protected.POST("/search", handler.Search)
			protected.POST("/enhance-title", handler.EnhanceTitle)
			protected.POST("/analyze-image", handler.AnalyzeImage)

			// Paths used by older extension builds
			protected.POST("/ebay/search", handler.Search)
			protected.POST("/ai/enhance-title", handler.EnhanceTitle)
			protected.POST("/ai/analyze-image", handler.AnalyzeImage)
		}
	}

	return router
}
