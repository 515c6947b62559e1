package models

import "time"

// AnalyticsEvent is the durable summary of one completed or failed run.
// It is written once as a single JSON line and never edited.
type AnalyticsEvent struct {
	RunID          string         `json:"run_id"`
	UserID         string         `json:"user_id"`
	CreatedAt      *time.Time     `json:"created_at"`
	StartedAt      *time.Time     `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at"`
	TimeZone       string         `json:"time_zone"`
	InputCount     int            `json:"input_count"`
	DomainsCount   int            `json:"domains_count"`
	Domains        []string       `json:"domains"`
	InvalidTokens  []string       `json:"invalid_tokens"`
	PDFStatus      string         `json:"pdf_status"`
	DomainsSuccess int            `json:"domains_success"`
	DomainsFailed  int            `json:"domains_failed"`
	DurationMs     *int64         `json:"duration_ms"`
	DomainResults  []DomainResult `json:"domain_results"`
	RetentionDays  int            `json:"retention_days"`
}

// RecordedAt is the time retention and ordering are measured from:
// completion, falling back to creation. ok is false when neither is set.
func (e *AnalyticsEvent) RecordedAt() (t time.Time, ok bool) {
	if e.CompletedAt != nil && !e.CompletedAt.IsZero() {
		return *e.CompletedAt, true
	}
	if e.CreatedAt != nil && !e.CreatedAt.IsZero() {
		return *e.CreatedAt, true
	}
	return time.Time{}, false
}

// DomainCount is one entry of the per-domain visit frequency list.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// UserCount is one entry of the per-user run frequency list.
type UserCount struct {
	UserID string `json:"user_id"`
	Runs   int    `json:"runs"`
}

// AnalyticsSummary aggregates the retained analytics events.
type AnalyticsSummary struct {
	RetentionDays               int            `json:"retention_days"`
	TotalRuns                   int            `json:"total_runs"`
	PDFSuccessCount             int            `json:"pdf_success_count"`
	PDFFailCount                int            `json:"pdf_fail_count"`
	PDFSuccessRate              float64        `json:"pdf_success_rate"`
	TotalUniqueDomainsProcessed int            `json:"total_unique_domains_processed"`
	AverageDomainsPerRun        float64        `json:"average_domains_per_run"`
	PDFStatusDistribution       map[string]int `json:"pdf_status_distribution"`
	TopDomains                  []DomainCount  `json:"top_domains"`
	TopUsers                    []UserCount    `json:"top_users"`
}
