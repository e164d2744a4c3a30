package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/distill/models"
	"github.com/use-agent/distill/scrape"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports 200/healthy while the browser process answers liveness pings,
// 503/unhealthy once it stops (recovery is an operational restart, not
// something the service attempts itself).
func Health(o *scrape.Orchestrator, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		live := o.IsLive()

		status := "healthy"
		code := http.StatusOK
		if !live {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, models.HealthResponse{
			Status:  status,
			Live:    live,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: "0.1.0",
		})
	}
}
