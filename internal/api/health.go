package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health implements GET /health: a composite check across hard
// dependencies (spec §4.11), returning 503 if any is down.
func (d *Deps) Health(c *gin.Context) {
	deps := []gin.H{}
	healthy := true

	if d.DB != nil {
		if err := d.DB.Healthy(c.Request.Context()); err != nil {
			healthy = false
			deps = append(deps, gin.H{"name": "database", "status": "down", "error": err.Error()})
		} else {
			deps = append(deps, gin.H{"name": "database", "status": "up"})
		}
	}

	if d.Proxies != nil {
		working := d.Proxies.WorkingCount()
		status := "up"
		if working == 0 {
			status = "down"
			healthy = false
		}
		deps = append(deps, gin.H{"name": "proxy_pool", "status": status, "working_count": working})
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{"status": overall, "deps": deps})
}

// Ready implements GET /ready: the process can serve traffic (the DB
// pool, if configured, must answer a ping).
func (d *Deps) Ready(c *gin.Context) {
	if d.DB != nil {
		if err := d.DB.Healthy(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Alive implements GET /alive: the process is up, no dependency check.
func (d *Deps) Alive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
