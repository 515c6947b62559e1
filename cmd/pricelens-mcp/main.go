package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/pricelens/models"
)

func main() {
	apiURL := os.Getenv("PRICELENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	// Only needed when the API runs with authentication enabled.
	apiKey := os.Getenv("PRICELENS_API_KEY")

	s := newServer(newClient(strings.TrimRight(apiURL, "/"), apiKey))
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newServer registers every pricelens tool on a fresh MCP server.
func newServer(c *client) *server.MCPServer {
	s := server.NewMCPServer(
		"pricelens",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	createReportTool := mcp.NewTool("create_report",
		mcp.WithDescription("Capture the pricing pages of up to 10 domains (desktop and mobile screenshots) and build a PDF report. Waits for the run to finish unless wait is false."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Identifier of the requesting user (letters, digits and . _ : @ -, at most 128 characters)"),
		),
		mcp.WithString("domains",
			mcp.Required(),
			mcp.Description("Comma-separated domains or URLs, e.g. 'stripe.com, https://notion.so'"),
		),
		mcp.WithString("time_zone",
			mcp.Description("IANA time zone for page timestamps (default: UTC)"),
		),
		mcp.WithBoolean("wait",
			mcp.Description("Wait for the run to reach DONE or FAILED (default: true)"),
		),
		mcp.WithString("save_to",
			mcp.Description("Directory to write the PDF into once the run is DONE"),
		),
	)
	s.AddTool(createReportTool, handleCreateReport(c))

	runStatusTool := mcp.NewTool("get_run_status",
		mcp.WithDescription("Show the status, progress and per-domain results of a report run."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("The run identifier returned by create_report"),
		),
	)
	s.AddTool(runStatusTool, handleRunStatus(c))

	downloadTool := mcp.NewTool("download_report",
		mcp.WithDescription("Download the PDF report of a finished run into a local directory."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("The run identifier returned by create_report"),
		),
		mcp.WithString("save_to",
			mcp.Required(),
			mcp.Description("Directory to write the PDF into"),
		),
	)
	s.AddTool(downloadTool, handleDownload(c))

	summaryTool := mcp.NewTool("analytics_summary",
		mcp.WithDescription("Aggregate statistics over the retained report runs: success rate, top domains and top users."),
		mcp.WithString("user_id",
			mcp.Description("Restrict the summary to one user"),
		),
	)
	s.AddTool(summaryTool, handleSummary(c))

	listRunsTool := mcp.NewTool("list_runs",
		mcp.WithDescription("List recent report runs, newest first."),
		mcp.WithString("user_id",
			mcp.Description("Restrict the list to one user"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs (default: 50, max: 500)"),
		),
	)
	s.AddTool(listRunsTool, handleListRuns(c))

	return s
}

func handleCreateReport(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := request.RequireString("user_id")
		if err != nil {
			return mcp.NewToolResultError("user_id is required"), nil
		}
		domains, err := request.RequireString("domains")
		if err != nil {
			return mcp.NewToolResultError("domains is required"), nil
		}

		created, err := c.createRun(ctx, models.CreateRunRequest{
			UserID:   userID,
			Domains:  domains,
			TimeZone: request.GetString("time_zone", ""),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("create run failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Run %s created with %d domain(s).\n", created.RunID, created.DomainsCount)
		if len(created.InvalidTokens) > 0 {
			fmt.Fprintf(&sb, "Ignored invalid entries: %s\n", strings.Join(created.InvalidTokens, ", "))
		}

		if !request.GetBool("wait", true) {
			fmt.Fprintf(&sb, "Poll get_run_status with run_id %s.\n", created.RunID)
			return mcp.NewToolResultText(sb.String()), nil
		}

		run, err := c.waitForRun(ctx, created.RunID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("waiting for run %s failed: %v", created.RunID, err)), nil
		}
		sb.WriteString("\n")
		sb.WriteString(formatRun(run))

		if dir := request.GetString("save_to", ""); dir != "" && run.Status == models.RunDone {
			path, err := saveReport(ctx, c, run.ID, dir)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("%s\nsaving report failed: %v", sb.String(), err)), nil
			}
			fmt.Fprintf(&sb, "\nReport saved to %s\n", path)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleRunStatus(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}
		run, err := c.runStatus(ctx, id)
		if err != nil {
			if isNotFound(err) {
				return mcp.NewToolResultError(fmt.Sprintf("run %s not found or expired", id)), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("status request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatRun(run)), nil
	}
}

func handleDownload(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}
		dir, err := request.RequireString("save_to")
		if err != nil {
			return mcp.NewToolResultError("save_to is required"), nil
		}
		path, err := saveReport(ctx, c, id, dir)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("download failed: %v", err)), nil
		}
		return mcp.NewToolResultText("Report saved to " + path), nil
	}
}

func handleSummary(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s, err := c.summary(ctx, request.GetString("user_id", ""))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("summary request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatSummary(s)), nil
	}
}

func handleListRuns(c *client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		events, err := c.listRuns(ctx, request.GetString("user_id", ""), request.GetInt("limit", 0))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list request failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatEvents(events)), nil
	}
}

// saveReport downloads the PDF of run id into dir and returns its path.
func saveReport(ctx context.Context, c *client, id, dir string) (string, error) {
	doc, filename, err := c.download(ctx, id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

func formatRun(run *models.Run) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %s (%d/%d processed)\n", run.ID, run.Status, run.Progress.Processed, run.Progress.Total)
	if run.Progress.CurrentDomain != nil && !run.Status.Terminal() {
		fmt.Fprintf(&sb, "Currently capturing: %s\n", *run.Progress.CurrentDomain)
	}
	if run.Summary != nil {
		fmt.Fprintf(&sb, "Domains: %d succeeded, %d failed. PDF: %s\n",
			run.Summary.DomainsSuccess, run.Summary.DomainsFailed, run.Summary.PDFStatus)
	}
	if run.ErrorMessage != nil {
		fmt.Fprintf(&sb, "Error: %s\n", *run.ErrorMessage)
	}
	for i, r := range run.DomainResults {
		if r.Status == models.ResultSuccess {
			resolved := r.TargetURL
			if r.ResolvedURL != nil {
				resolved = *r.ResolvedURL
			}
			fmt.Fprintf(&sb, "  [%d] %s OK %s %q\n", i+1, r.Domain, resolved, r.PageTitle)
			continue
		}
		code, msg := "UNKNOWN", ""
		if r.ErrorCode != nil {
			code = *r.ErrorCode
		}
		if r.ErrorMessage != nil {
			msg = *r.ErrorMessage
		}
		fmt.Fprintf(&sb, "  [%d] %s FAILED %s: %s\n", i+1, r.Domain, code, msg)
	}
	if run.DownloadReady {
		fmt.Fprintf(&sb, "PDF ready: /api/runs/%s/download\n", run.ID)
	}
	return sb.String()
}

func formatSummary(s *models.AnalyticsSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Runs in the last %d days: %d (%d PDF ok, %d failed, %.0f%% success)\n",
		s.RetentionDays, s.TotalRuns, s.PDFSuccessCount, s.PDFFailCount, s.PDFSuccessRate*100)
	fmt.Fprintf(&sb, "Domains processed: %d (%.2f per run)\n", s.TotalUniqueDomainsProcessed, s.AverageDomainsPerRun)
	if len(s.TopDomains) > 0 {
		sb.WriteString("Top domains:\n")
		for _, d := range s.TopDomains {
			fmt.Fprintf(&sb, "  %s: %d\n", d.Domain, d.Count)
		}
	}
	if len(s.TopUsers) > 0 {
		sb.WriteString("Top users:\n")
		for _, u := range s.TopUsers {
			fmt.Fprintf(&sb, "  %s: %d\n", u.UserID, u.Runs)
		}
	}
	return sb.String()
}

func formatEvents(events []models.AnalyticsEvent) string {
	if len(events) == 0 {
		return "No runs recorded."
	}
	var sb strings.Builder
	for _, e := range events {
		when := "unknown time"
		if e.CompletedAt != nil {
			when = e.CompletedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "%s %s user=%s pdf=%s domains=%d ok=%d failed=%d\n",
			when, e.RunID, e.UserID, e.PDFStatus, e.DomainsCount, e.DomainsSuccess, e.DomainsFailed)
	}
	return sb.String()
}
