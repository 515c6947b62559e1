package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricelens/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/health.
func Health(svc RunService, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			OK:         true,
			Service:    "pricelens",
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			ActiveRuns: svc.ActiveRuns(),
			Version:    Version,
		})
	}
}
