package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/magda-composer/internal/api/handlers"
	apimiddleware "github.com/Conceptual-Machines/magda-composer/internal/api/middleware"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/metrics"
)

func SetupRouter(cfg *config.Config, pipeline handlers.Pipeline, cw *metrics.Client, version string) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(cw, metrics.NewSentryMetrics()))

	// CORS middleware
	router.Use(apimiddleware.CORS())

	// Health check
	healthHandler := handlers.NewHealthHandler(pipeline)
	router.GET("/health", healthHandler.HealthCheck)

	// Metrics endpoint
	metricsHandler := handlers.NewMetricsHandler(version, pipeline)
	router.GET("/api/metrics", metricsHandler.GetMetrics)

	// Protected API routes v1 (AUTH_MODE=jwt requires a bearer token)
	v1 := router.Group("/api/v1")
	v1.Use(apimiddleware.Auth(cfg))
	{
		corpusHandler := handlers.NewCorpusHandler(pipeline)
		v1.GET("/corpus", corpusHandler.GetStatus)
		v1.POST("/corpus/extract", corpusHandler.Extract)

		generationHandler := handlers.NewGenerationHandler(pipeline)
		v1.POST("/generations", generationHandler.Generate)
		v1.GET("/generations", generationHandler.List)
		v1.GET("/generations/:name/file", generationHandler.Download)
		v1.GET("/runs", generationHandler.ListRuns)
		v1.GET("/runs/:id", generationHandler.GetRun)
	}

	return router
}
