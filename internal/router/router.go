package router

import (
	"github.com/gin-gonic/gin"

	"payrecon/internal/config"
	"payrecon/internal/handler"
	"payrecon/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	runH *handler.RunHandler,
	resultH *handler.ResultHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	// Run lifecycle
	runs := v1.Group("/runs")
	runs.POST("", runH.Start)
	runs.GET("/status", runH.Status)
	runs.GET("/latest", runH.Latest)
	runs.GET("/summary", runH.Summary)
	runs.GET("/report", runH.DownloadReport)
	runs.GET("/:id", runH.GetByID)
	runs.GET("/:id/results", resultH.ListByRun)
	runs.GET("/:id/export", resultH.ExportCSV)

	// Results
	results := v1.Group("/results")
	results.GET("/search", resultH.Search)
	results.GET("/:id", resultH.GetByID)
	results.DELETE("", resultH.Clear)

	// Extracted advices
	advices := v1.Group("/advices")
	advices.GET("", resultH.ListAdvices)
	advices.GET("/:id", resultH.GetAdvice)

	return r
}
