// Package runs orchestrates report runs: it owns the run state machine,
// drives the capture of each domain, assembles the document and records
// the outcome.
package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/pricelens/capture"
	"github.com/use-agent/pricelens/models"
)

var (
	// ErrRunNotFound is returned for unknown or evicted runs.
	ErrRunNotFound = errors.New("run not found or expired")

	// ErrDocumentNotReady is returned while a run has no document to serve.
	ErrDocumentNotReady = errors.New("PDF is not ready yet")
)

// Capturer captures domains for one run. Close releases its browser.
type Capturer interface {
	CaptureDomain(ctx context.Context, domain, timeZone string) models.DomainResult
	Close() error
}

// OpenFunc starts a Capturer for a run. An error fails the run.
type OpenFunc func(ctx context.Context) (Capturer, error)

// Assembler turns domain results into the report document.
type Assembler interface {
	Assemble(results []models.DomainResult) ([]byte, error)
}

// Recorder persists the analytics event of a finished run.
type Recorder interface {
	AppendEvent(e models.AnalyticsEvent) error
}

// Notifier is told about every run that reaches a terminal state.
type Notifier interface {
	Notify(run *models.Run)
}

// Options tunes a Manager.
type Options struct {
	// DomainDelay is the pause between two domains of a run.
	DomainDelay time.Duration

	// Now is the clock used for run timestamps. Default: time.Now.
	Now func() time.Time

	// NewID generates run identifiers. Default: random UUIDv4.
	NewID func() string
}

// CreateParams is a validated run submission.
type CreateParams struct {
	UserID        string
	Domains       []string
	InputCount    int
	InvalidTokens []string
	TimeZone      string
}

// Manager creates runs and executes each on its own goroutine. Runs cannot
// be cancelled: once created, a run always reaches DONE or FAILED.
type Manager struct {
	store     *Store
	open      OpenFunc
	assembler Assembler
	recorder  Recorder
	notifier  Notifier
	opts      Options
	wg        sync.WaitGroup
}

// NewManager wires a Manager. notifier may be nil.
func NewManager(store *Store, open OpenFunc, assembler Assembler, recorder Recorder, notifier Notifier, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.DomainDelay < 0 {
		opts.DomainDelay = 0
	}
	return &Manager{
		store:     store,
		open:      open,
		assembler: assembler,
		recorder:  recorder,
		notifier:  notifier,
		opts:      opts,
	}
}

// CreateRun registers a run, moves it to RUNNING, starts it and returns its
// snapshot. The snapshot is never QUEUED.
func (m *Manager) CreateRun(p CreateParams) *models.Run {
	zone, _ := capture.ResolveTimeZone(p.TimeZone)
	domains := append([]string(nil), p.Domains...)
	invalid := append([]string{}, p.InvalidTokens...)

	run := &models.Run{
		ID:            m.opts.NewID(),
		UserID:        p.UserID,
		Status:        models.RunQueued,
		CreatedAt:     m.opts.Now().UTC(),
		Progress:      models.Progress{Total: len(domains)},
		InputCount:    p.InputCount,
		DomainsCount:  len(domains),
		Domains:       domains,
		InvalidTokens: invalid,
		TimeZone:      zone,
		DomainResults: []models.DomainResult{},
	}
	started := m.opts.Now().UTC()
	run.Status = models.RunRunning
	run.StartedAt = &started
	m.store.Put(run)
	snapshot := run.Clone()

	slog.Info("run created",
		"run_id", run.ID, "user_id", run.UserID, "domains", len(domains), "time_zone", zone)

	m.wg.Add(1)
	go m.execute(run.ID, snapshot.Clone())

	return snapshot
}

// GetRun returns a snapshot of the run.
func (m *Manager) GetRun(id string) (*models.Run, bool) {
	return m.store.Get(id)
}

// Document returns the report of a DONE run.
func (m *Manager) Document(id string) ([]byte, error) {
	run, ok := m.store.Get(id)
	if !ok {
		return nil, ErrRunNotFound
	}
	if !run.DownloadReady {
		return nil, ErrDocumentNotReady
	}
	return run.Document, nil
}

// MarkDownloaded counts a served download.
func (m *Manager) MarkDownloaded(id string) {
	m.store.Update(id, func(run *models.Run) { run.DownloadCount++ })
}

// ActiveRuns returns the number of QUEUED or RUNNING runs.
func (m *Manager) ActiveRuns() int {
	return m.store.Active()
}

// Wait blocks until every started run has reached a terminal state or ctx
// is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute drives a RUNNING run to a terminal state.
//
//  1. Capture          – one domain at a time, paced, progress before each
//  2. Assemble         – one page per result, verified
//  3. Terminal         – DONE with document, or FAILED with synthesised results
//  4. Side effects     – analytics event, webhook, eviction timer
func (m *Manager) execute(id string, run *models.Run) {
	defer m.wg.Done()
	ctx := context.Background()
	log := slog.With("run_id", id)
	started := *run.StartedAt

	// ── 1–2. Capture and assemble ─────────────────────────────────────
	var results []models.DomainResult
	doc, err := m.produce(ctx, id, run, &results)

	// ── 3. Terminal ───────────────────────────────────────────────────
	var finish func(r *models.Run)
	if err != nil {
		log.Error("run failed", "error", err, "captured", len(results))
		finish = m.failure(run, started, results, err)
	} else {
		log.Info("run done", "bytes", len(doc), "domains", len(results))
		finish = m.completion(started, results, doc)
	}
	m.store.Update(id, finish)

	// ── 4. Side effects ───────────────────────────────────────────────
	final, ok := m.store.Get(id)
	if !ok {
		// The live entry is gone; the terminal event is still owed.
		log.Warn("run left the store before its terminal state was recorded")
		final = run.Clone()
		finish(final)
	}
	if err := m.recorder.AppendEvent(eventFor(final)); err != nil {
		log.Error("failed to record analytics event", "error", err)
	}
	if m.notifier != nil {
		m.notifier.Notify(final)
	}
	if ok {
		m.store.ScheduleEviction(id)
	}
}

// produce captures every domain of run and assembles the document. Panics
// are recovered and reported as errors; results holds whatever was captured.
func (m *Manager) produce(ctx context.Context, id string, run *models.Run, results *[]models.DomainResult) (doc []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()

	capturer, err := m.open(ctx)
	if err != nil {
		return nil, err
	}
	closed := false
	release := func() {
		if closed {
			return
		}
		closed = true
		if err := capturer.Close(); err != nil {
			slog.Warn("cleanup: failed to release capturer", "run_id", id, "error", err)
		}
	}
	defer release()

	total := len(run.Domains)
	for i, domain := range run.Domains {
		if i > 0 && m.opts.DomainDelay > 0 {
			time.Sleep(m.opts.DomainDelay)
		}
		m.store.Update(id, func(r *models.Run) {
			r.Progress = models.Progress{Processed: i, Total: total, CurrentDomain: models.StringPtr(domain)}
		})

		result := capturer.CaptureDomain(ctx, domain, run.TimeZone)
		*results = append(*results, result)
		m.store.Update(id, func(r *models.Run) {
			r.DomainResults = append(r.DomainResults, result.Reduced())
		})
	}

	// The browser is no longer needed once every domain is captured.
	release()

	return m.assembler.Assemble(*results)
}

// completion returns the DONE transition for a run that produced doc.
func (m *Manager) completion(started time.Time, results []models.DomainResult, doc []byte) func(r *models.Run) {
	now := m.opts.Now().UTC()
	summary := summarize(results)
	return func(r *models.Run) {
		if !r.Status.CanTransition(models.RunDone) {
			return
		}
		r.Status = models.RunDone
		r.CompletedAt = &now
		r.DurationMs = durationMs(started, now)
		r.Progress = models.Progress{Processed: r.DomainsCount, Total: r.DomainsCount}
		r.DomainResults = models.ReduceResults(results)
		r.Summary = &summary
		r.Document = doc
	}
}

// failure returns the FAILED transition. Domains without a result are
// synthesised as UNKNOWN errors.
func (m *Manager) failure(run *models.Run, started time.Time, results []models.DomainResult, cause error) func(r *models.Run) {
	now := m.opts.Now().UTC()
	all := models.ReduceResults(results)
	for _, domain := range run.Domains[len(results):] {
		all = append(all, models.DomainResult{
			Domain:         domain,
			Status:         models.ResultError,
			ErrorCode:      models.StringPtr(models.ErrCodeUnknown),
			ErrorMessage:   models.StringPtr("run failed before this domain was captured"),
			PageTitle:      domain,
			TimestampLocal: capture.FormatLocal(now, run.TimeZone),
		})
	}
	msg := cause.Error()

	return func(r *models.Run) {
		if r.Status.Terminal() {
			return
		}
		r.Status = models.RunFailed
		r.CompletedAt = &now
		if r.StartedAt != nil {
			r.DurationMs = durationMs(started, now)
		}
		r.Progress = models.Progress{Processed: r.DomainsCount, Total: r.DomainsCount}
		r.DomainResults = all
		r.ErrorMessage = &msg
		r.Summary = &models.Summary{
			DomainsTotal:   r.DomainsCount,
			DomainsSuccess: 0,
			DomainsFailed:  r.DomainsCount,
			PDFStatus:      models.PDFStatusFail,
		}
		r.Document = nil
	}
}

func summarize(results []models.DomainResult) models.Summary {
	s := models.Summary{DomainsTotal: len(results), PDFStatus: models.PDFStatusSuccess}
	for i := range results {
		if results[i].Succeeded() {
			s.DomainsSuccess++
		} else {
			s.DomainsFailed++
		}
	}
	return s
}

// eventFor projects a terminal run onto its analytics record.
func eventFor(run *models.Run) models.AnalyticsEvent {
	created := run.CreatedAt
	e := models.AnalyticsEvent{
		RunID:         run.ID,
		UserID:        run.UserID,
		CreatedAt:     &created,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		TimeZone:      run.TimeZone,
		InputCount:    run.InputCount,
		DomainsCount:  run.DomainsCount,
		Domains:       run.Domains,
		InvalidTokens: run.InvalidTokens,
		PDFStatus:     models.PDFStatusFail,
		DomainsFailed: run.DomainsCount,
		DurationMs:    run.DurationMs,
		DomainResults: run.DomainResults,
	}
	if run.Summary != nil {
		e.PDFStatus = run.Summary.PDFStatus
		e.DomainsSuccess = run.Summary.DomainsSuccess
		e.DomainsFailed = run.Summary.DomainsFailed
	}
	return e
}

func durationMs(from, to time.Time) *int64 {
	d := to.Sub(from).Milliseconds()
	return &d
}
