package http

import (
	"github.com/gin-gonic/gin"
	"github.com/realitycheck/backend/config"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log logrus.FieldLogger) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log = logging.Component(log, "router")
	router := gin.New()

	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		api.POST("/analyze", handler.AnalyzeProduct)
		api.POST("/analyze-image", handler.AnalyzeImage)

		products := api.Group("/products")
		{
			products.GET("", handler.SearchProducts)
			products.GET("/live", handler.LiveSearch)
			products.GET("/scan/:code", handler.ScanProduct)
			products.POST("/analyze", handler.BackendAnalysis)
			products.GET("/:ean", handler.GetProduct)
			products.POST("/:ean/ai-analysis", handler.ProductAIAnalysis)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/signup", handler.Signup)
			auth.POST("/login", handler.Login)
			auth.POST("/logout", handler.Logout)
			auth.GET("/me", handler.CurrentSession)
		}

		users := api.Group("/users/me", handler.RequireSession())
		{
			users.PUT("/preferences", handler.UpdatePreferences)
			users.POST("/favorites/:ean", handler.AddFavorite)
			users.GET("/favorites", handler.Favorites)
		}
	}

	return router
}
