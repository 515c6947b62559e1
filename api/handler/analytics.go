package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricelens/analytics"
	"github.com/use-agent/pricelens/domains"
	"github.com/use-agent/pricelens/models"
)

const defaultListLimit = 50

// AnalyticsService is the read side of the analytics log.
type AnalyticsService interface {
	ListRuns(q analytics.ListQuery) ([]models.AnalyticsEvent, error)
	GetSummary(userID string) (*models.AnalyticsSummary, error)
}

// AnalyticsSummary returns a handler for GET /api/analytics/summary.
func AnalyticsSummary(svc AnalyticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := optionalUserID(c)
		if !ok {
			return
		}
		summary, err := svc.GetSummary(userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// AnalyticsRuns returns a handler for GET /api/analytics/runs.
// limit defaults to 50; the log clamps it to [1, 500].
func AnalyticsRuns(svc AnalyticsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := optionalUserID(c)
		if !ok {
			return
		}
		limit := defaultListLimit
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}

		events, err := svc.ListRuns(analytics.ListQuery{UserID: userID, Limit: limit})
		if err != nil {
			respondError(c, err)
			return
		}
		if events == nil {
			events = []models.AnalyticsEvent{}
		}
		c.JSON(http.StatusOK, models.ListRunsResponse{Runs: events})
	}
}

// optionalUserID reads ?user_id=. An empty value means all users; an
// invalid one is answered with 400 and ok=false.
func optionalUserID(c *gin.Context) (string, bool) {
	raw := c.Query("user_id")
	if raw == "" {
		return "", true
	}
	userID, ok := domains.SanitizeUserID(raw)
	if !ok {
		badRequest(c, "Invalid user_id", nil)
		return "", false
	}
	return userID, true
}
