package models

import "time"

// RunStatus is the lifecycle state of a run.
//
//	QUEUED → RUNNING → {DONE | FAILED}
type RunStatus string

const (
	RunQueued  RunStatus = "QUEUED"
	RunRunning RunStatus = "RUNNING"
	RunDone    RunStatus = "DONE"
	RunFailed  RunStatus = "FAILED"
)

// Terminal reports whether no further transition can leave this status.
func (s RunStatus) Terminal() bool {
	return s == RunDone || s == RunFailed
}

// CanTransition reports whether moving from s to next respects the run
// state machine.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunQueued:
		return next == RunRunning
	case RunRunning:
		return next == RunDone || next == RunFailed
	default:
		return false
	}
}

// Document generation outcome recorded in summaries and analytics.
const (
	PDFStatusSuccess = "success"
	PDFStatusFail    = "fail"
)

// Progress is the live progress snapshot of a run.
// Processed never exceeds Total.
type Progress struct {
	Processed     int     `json:"processed"`
	Total         int     `json:"total"`
	CurrentDomain *string `json:"current_domain"`
}

// Summary is the final tally of a run.
type Summary struct {
	DomainsTotal   int    `json:"domains_total"`
	DomainsSuccess int    `json:"domains_success"`
	DomainsFailed  int    `json:"domains_failed"`
	PDFStatus      string `json:"pdf_status"`
}

// Run is one batch job over a user-submitted domain list.
//
// The orchestrator owns the live copy; everything else sees snapshots.
// Document is non-nil iff Status is DONE.
type Run struct {
	ID            string         `json:"run_id"`
	UserID        string         `json:"user_id"`
	Status        RunStatus      `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at"`
	Progress      Progress       `json:"progress"`
	InputCount    int            `json:"input_count"`
	DomainsCount  int            `json:"domains_count"`
	Domains       []string       `json:"domains"`
	InvalidTokens []string       `json:"invalid_tokens"`
	TimeZone      string         `json:"time_zone"`
	Summary       *Summary       `json:"summary"`
	DomainResults []DomainResult `json:"domain_results"`
	ErrorMessage  *string        `json:"error_message"`
	DownloadCount int            `json:"download_count"`
	DownloadReady bool           `json:"download_ready"`
	DurationMs    *int64         `json:"duration_ms"`

	Document []byte `json:"-"`
}

// Clone returns a deep copy of the run that shares no mutable state with r.
// Image bytes of the domain results are dropped; the document is kept.
func (r *Run) Clone() *Run {
	c := *r
	c.Domains = append([]string(nil), r.Domains...)
	c.InvalidTokens = append([]string(nil), r.InvalidTokens...)
	c.DomainResults = ReduceResults(r.DomainResults)
	if r.Summary != nil {
		s := *r.Summary
		c.Summary = &s
	}
	if r.Progress.CurrentDomain != nil {
		c.Progress.CurrentDomain = StringPtr(*r.Progress.CurrentDomain)
	}
	c.DownloadReady = r.Status == RunDone && len(r.Document) > 0
	return &c
}
