package handlers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"feedbackapp/internal/config"
	"feedbackapp/internal/middleware"
	"feedbackapp/internal/observability"
	"feedbackapp/internal/services"
)

// NewRouter creates the gin engine with all middleware and routes
func NewRouter(
	cfg *config.Config,
	feedbackService services.FeedbackServiceInterface,
	aiService services.AIServiceInterface,
	storage BackendReporter,
	logger *observability.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	systemHandler := NewSystemHandler(cfg, storage, aiService, logger)

	// Health check endpoint (defined before tracing)
	router.GET("/health", systemHandler.Health)

	// OpenTelemetry middleware with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling(cfg.OpenTelemetry.ServiceName)...)

	router.RedirectTrailingSlash = false

	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	feedbackHandler := NewFeedbackHandler(feedbackService, logger)

	api := router.Group("/api")
	{
		api.POST("/submit", feedbackHandler.SubmitFeedback)
		api.GET("/feedback", feedbackHandler.GetFeedback)
		api.GET("/stats", feedbackHandler.GetStats)
	}

	router.GET("/", systemHandler.UserDashboard)
	router.GET("/admin", systemHandler.AdminDashboard)
	router.Static("/static", cfg.Server.StaticDir)

	routeListing := NewRouteListingHandler(cfg.OpenTelemetry.ServiceName)
	router.GET("/routez", routeListing.GetRouteListingJSON)
	routeListing.CollectRoutes(router)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}

// corsConfig allows every origin when origins is empty or contains "*"
func corsConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With", middleware.RequestIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}

	trimmed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			trimmed = append(trimmed, o)
		}
	}
	if len(trimmed) == 0 || slices.Contains(trimmed, "*") {
		corsConfig.AllowAllOrigins = true
		return corsConfig
	}

	corsConfig.AllowOrigins = trimmed
	corsConfig.AllowCredentials = true
	return corsConfig
}
