package models

// CreateRunRequest is the payload for POST /api/runs. It is accepted as JSON
// or as a URL-encoded form.
type CreateRunRequest struct {
	// UserID identifies the submitting user. Required.
	UserID string `json:"user_id" form:"user_id"`

	// Domains is the raw comma-separated domain list, e.g. "stripe.com, notion.so".
	Domains string `json:"domains" form:"domains"`

	// TimeZone is an IANA zone name used for per-page timestamps. Default: UTC.
	TimeZone string `json:"time_zone,omitempty" form:"time_zone"`
}

// CreateRunResponse is the 202 response for POST /api/runs.
type CreateRunResponse struct {
	RunID         string    `json:"run_id"`
	Status        RunStatus `json:"status"`
	StatusURL     string    `json:"status_url"`
	DownloadURL   string    `json:"download_url"`
	DomainsCount  int       `json:"domains_count"`
	InvalidTokens []string  `json:"invalid_tokens"`
}

// ListRunsResponse is the response for GET /api/analytics/runs.
type ListRunsResponse struct {
	Runs []AnalyticsEvent `json:"runs"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error         string   `json:"error"`
	Code          string   `json:"code,omitempty"`
	InvalidTokens []string `json:"invalid_tokens,omitempty"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	OK         bool   `json:"ok"`
	Service    string `json:"service"`
	Timestamp  string `json:"timestamp"`
	Uptime     string `json:"uptime"`
	ActiveRuns int    `json:"active_runs"`
	Version    string `json:"version"`
}
