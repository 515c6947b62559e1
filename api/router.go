package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricelens/api/handler"
	"github.com/use-agent/pricelens/api/middleware"
	"github.com/use-agent/pricelens/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds the background work of the rate limiter.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, rs handler.RunService, as handler.AnalyticsService, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	api := r.Group("/api")

	// Health: no auth required.
	api.GET("/health", handler.Health(rs, startTime))

	// Protected group: auth and rate limit.
	protected := api.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	// Runs
	protected.POST("/runs", handler.CreateRun(rs, cfg.Runs.MaxDomains))
	protected.GET("/runs/:id/status", handler.RunStatus(rs))
	protected.GET("/runs/:id/download", handler.DownloadRun(rs, time.Now))

	// Analytics
	protected.GET("/analytics/summary", handler.AnalyticsSummary(as))
	protected.GET("/analytics/runs", handler.AnalyticsRuns(as))

	return r
}
