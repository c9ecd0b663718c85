// Package api is the thin HTTP surface (C11): a gin router exposing
// health checks, Prometheus metrics, and the handful of operator
// endpoints that trigger core operations on demand.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the gin engine, generalizing the teacher's
// pkg/api/router.go (LoggingMiddleware + CORSMiddleware, kept nearly
// verbatim) with gzip, process-time, and Prometheus metrics added.
func NewRouter(d *Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware())
	r.Use(ProcessTimeMiddleware(d.ServerName))
	r.Use(GzipMiddleware())

	r.GET("/health", d.Health)
	r.GET("/ready", d.Ready)
	r.GET("/alive", d.Alive)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api")
	{
		v1.POST("/subreddits/fetch-single", d.FetchSingleSubreddit)
		v1.POST("/instagram/creator", d.AddCreator)
		v1.POST("/cron/cleanup-logs", d.CleanupLogs)
		v1.POST("/categorization/start", d.StartCategorization)
		v1.GET("/categorization/status/:job_id", d.CategorizationStatus)
		v1.POST("/control/:scraper/start", d.ControlStart)
		v1.POST("/control/:scraper/stop", d.ControlStop)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	return r
}
