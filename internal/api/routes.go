package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/northlink/link-importer/internal/handler"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// SetupRoutes configures all API routes.
func SetupRoutes(
	router *gin.Engine,
	importHandler *handler.ImportHandler,
	registry *prometheus.Registry,
	checks map[string]HealthCheck,
) {
	router.GET("/health", healthHandler(checks))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.POST("/import", importHandler.HandleImport)
}

// healthHandler runs each dependency check and reports 503 when any fails.
func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))

		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}

		body := gin.H{"checks": results}
		if status == http.StatusOK {
			body["status"] = "healthy"
		} else {
			body["status"] = "unhealthy"
		}

		c.JSON(status, body)
	}
}
