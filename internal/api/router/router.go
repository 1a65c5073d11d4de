package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FREDERICO23/gridflow-api/internal/api/handler"
)

// Options configures the router beyond handler wiring.
type Options struct {
	APIKey string

	// DatabaseCheck reports database health for /status. Nil means unknown.
	DatabaseCheck func(ctx context.Context) error

	// QueueCheck reports broker connectivity for /status. Nil means unknown.
	QueueCheck func() bool
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Liveness probe, intentionally unauthenticated.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "gridflow-api",
		})
	})

	// Readiness with dependency checks.
	r.GET("/status", func(c *gin.Context) {
		dbStatus := "unknown"
		queueStatus := "unknown"
		healthy := true

		if opts.DatabaseCheck != nil {
			if err := opts.DatabaseCheck(c.Request.Context()); err != nil {
				dbStatus = "unhealthy"
				healthy = false
			} else {
				dbStatus = "healthy"
			}
		}
		if opts.QueueCheck != nil {
			if opts.QueueCheck() {
				queueStatus = "healthy"
			} else {
				queueStatus = "unhealthy"
				healthy = false
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"database": dbStatus,
			"queue":    queueStatus,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes, API-key protected.
	v1 := r.Group("/api/v1")
	v1.Use(APIKeyMiddleware(opts.APIKey))
	{
		v1.POST("/uploads", jobHandler.Upload)

		jobs := v1.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.GET("/:job_id/parsed", jobHandler.GetParsedSeries)
			jobs.GET("/:job_id/normalized", jobHandler.GetNormalizedSeries)
			jobs.GET("/:job_id/enrichment", jobHandler.GetEnrichment)
			jobs.GET("/:job_id/quality-report", jobHandler.GetQualityReport)
			jobs.GET("/:job_id/forecast", jobHandler.GetForecast)
			jobs.GET("/:job_id/forecast/download", jobHandler.DownloadForecast)
		}
	}

	return r
}
