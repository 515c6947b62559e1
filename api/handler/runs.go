package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricelens/domains"
	"github.com/use-agent/pricelens/models"
	"github.com/use-agent/pricelens/runs"
)

// RunService is the part of the run orchestrator the handlers use.
type RunService interface {
	CreateRun(p runs.CreateParams) *models.Run
	GetRun(id string) (*models.Run, bool)
	Document(id string) ([]byte, error)
	MarkDownloaded(id string)
	ActiveRuns() int
}

const invalidUserIDMessage = "user_id is required; allowed characters: letters, digits, ., _, :, @, -"

// CreateRun returns a handler for POST /api/runs.
//
//  1. Bind JSON or form body.
//  2. Validate user_id.
//  3. Parse, normalise and cap the domain list.
//  4. Start the run, return 202 with polling URLs.
func CreateRun(svc RunService, maxDomains int) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.CreateRunRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error(), nil)
			return
		}

		// ── 2. User ─────────────────────────────────────────────────
		userID, ok := domains.SanitizeUserID(req.UserID)
		if !ok {
			badRequest(c, invalidUserIDMessage, nil)
			return
		}

		// ── 3. Domains ──────────────────────────────────────────────
		parsed := domains.Parse(req.Domains)
		if err := domains.ValidateSelection(parsed.Unique, maxDomains); err != nil {
			badRequest(c, err.Error(), parsed.Invalid)
			return
		}

		// ── 4. Start ────────────────────────────────────────────────
		run := svc.CreateRun(runs.CreateParams{
			UserID:        userID,
			Domains:       parsed.Unique,
			InputCount:    parsed.InputCount,
			InvalidTokens: parsed.Invalid,
			TimeZone:      req.TimeZone,
		})

		c.JSON(http.StatusAccepted, models.CreateRunResponse{
			RunID:         run.ID,
			Status:        run.Status,
			StatusURL:     "/api/runs/" + run.ID + "/status",
			DownloadURL:   "/api/runs/" + run.ID + "/download",
			DomainsCount:  run.DomainsCount,
			InvalidTokens: run.InvalidTokens,
		})
	}
}

// RunStatus returns a handler for GET /api/runs/:id/status.
func RunStatus(svc RunService) gin.HandlerFunc {
	return func(c *gin.Context) {
		run, ok := svc.GetRun(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: "Run not found or expired",
				Code:  models.ErrCodeRunNotFound,
			})
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// DownloadRun returns a handler for GET /api/runs/:id/download. now stamps
// the attachment file name.
func DownloadRun(svc RunService, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		doc, err := svc.Document(id)
		if err != nil {
			respondError(c, err)
			return
		}
		svc.MarkDownloaded(id)

		filename := DownloadFilename(id, now())
		slog.Info("report downloaded", "run_id", id, "bytes", len(doc))

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Header("Content-Length", strconv.Itoa(len(doc)))
		c.Data(http.StatusOK, "application/pdf", doc)
	}
}

var fileNameSafe = strings.NewReplacer(":", "-", ".", "-")

// DownloadFilename is pricing-report-{first 8 of id}-{ISO time with : and . replaced}.pdf.
func DownloadFilename(id string, t time.Time) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	stamp := fileNameSafe.Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	return "pricing-report-" + short + "-" + stamp + ".pdf"
}
