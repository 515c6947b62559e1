// Package analytics keeps the durable newline-delimited log of finished runs
// and aggregates it on read.
package analytics

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/use-agent/pricelens/models"
)

// RetentionDays is how long events are kept, measured from completion.
const RetentionDays = 90

const (
	maxListLimit = 500
	topN         = 20
)

// Options tunes a Log.
type Options struct {
	// Retention overrides the retention window. Default: RetentionDays days.
	Retention time.Duration

	// Now is the clock retention is measured against. Default: time.Now.
	Now func() time.Time
}

// ListQuery selects events for ListRuns.
type ListQuery struct {
	// UserID restricts the listing to one user when non-empty.
	UserID string
	// Limit is clamped to [1, 500].
	Limit int
}

// Log is an append-only event log stored as one JSON object per line.
// All operations are serialised by an in-process mutex.
type Log struct {
	mu        sync.Mutex
	fs        billy.Filesystem
	path      string
	retention time.Duration
	now       func() time.Time
}

// New opens (creating if needed) the log at path on fs and prunes expired events.
func New(fs billy.Filesystem, path string, opts Options) (*Log, error) {
	if opts.Retention <= 0 {
		opts.Retention = RetentionDays * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := &Log{fs: fs, path: path, retention: opts.Retention, now: opts.Now}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensure(); err != nil {
		return nil, err
	}
	if _, err := l.prune(); err != nil {
		return nil, err
	}
	return l, nil
}

// RetentionDays reports the active retention window in whole days.
func (l *Log) RetentionDays() int {
	return int(l.retention / (24 * time.Hour))
}

// AppendEvent prunes expired events and appends e.
func (l *Log) AppendEvent(e models.AnalyticsEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.prune()
	if err != nil {
		return err
	}
	if e.RetentionDays == 0 {
		e.RetentionDays = l.RetentionDays()
	}
	events = append(events, e)
	return l.write(events)
}

// ListRuns returns retained events, newest first.
func (l *Log) ListRuns(q ListQuery) ([]models.AnalyticsEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.prune()
	if err != nil {
		return nil, err
	}
	events = filterUser(events, q.UserID)

	sort.SliceStable(events, func(i, j int) bool {
		ti, _ := events[i].RecordedAt()
		tj, _ := events[j].RecordedAt()
		return ti.After(tj)
	})

	limit := min(max(q.Limit, 1), maxListLimit)
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// GetSummary aggregates retained events, optionally for one user.
func (l *Log) GetSummary(userID string) (*models.AnalyticsSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.prune()
	if err != nil {
		return nil, err
	}
	return summarize(filterUser(events, userID), l.RetentionDays()), nil
}

func summarize(events []models.AnalyticsEvent, retentionDays int) *models.AnalyticsSummary {
	s := &models.AnalyticsSummary{
		RetentionDays: retentionDays,
		TotalRuns:     len(events),
		PDFStatusDistribution: map[string]int{
			models.PDFStatusSuccess: 0,
			models.PDFStatusFail:    0,
		},
		TopDomains: []models.DomainCount{},
		TopUsers:   []models.UserCount{},
	}

	domains := newCounter()
	users := newCounter()
	for _, e := range events {
		switch e.PDFStatus {
		case models.PDFStatusSuccess:
			s.PDFSuccessCount++
		case models.PDFStatusFail:
			s.PDFFailCount++
		}
		if e.PDFStatus != "" {
			s.PDFStatusDistribution[e.PDFStatus]++
		}
		s.TotalUniqueDomainsProcessed += e.DomainsCount
		users.add(e.UserID)
		for _, d := range e.Domains {
			domains.add(d)
		}
	}

	if s.TotalRuns > 0 {
		s.PDFSuccessRate = float64(s.PDFSuccessCount) / float64(s.TotalRuns)
		s.AverageDomainsPerRun = math.Round(float64(s.TotalUniqueDomainsProcessed)/float64(s.TotalRuns)*100) / 100
	}
	for _, kv := range domains.top(topN) {
		s.TopDomains = append(s.TopDomains, models.DomainCount{Domain: kv.key, Count: kv.n})
	}
	for _, kv := range users.top(topN) {
		s.TopUsers = append(s.TopUsers, models.UserCount{UserID: kv.key, Runs: kv.n})
	}
	return s
}

// counter counts keys while remembering first-seen order for stable ties.
type counter struct {
	index map[string]int
	items []entry
}

type entry struct {
	key string
	n   int
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(key string) {
	if i, ok := c.index[key]; ok {
		c.items[i].n++
		return
	}
	c.index[key] = len(c.items)
	c.items = append(c.items, entry{key: key, n: 1})
}

func (c *counter) top(n int) []entry {
	out := append([]entry(nil), c.items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].n > out[j].n })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func filterUser(events []models.AnalyticsEvent, userID string) []models.AnalyticsEvent {
	if userID == "" {
		return events
	}
	out := make([]models.AnalyticsEvent, 0, len(events))
	for _, e := range events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// ensure creates the parent directory and an empty log file when missing.
func (l *Log) ensure() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("analytics: create directory: %w", err)
		}
	}
	if _, err := l.fs.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		if err := util.WriteFile(l.fs, l.path, nil, 0o644); err != nil {
			return fmt.Errorf("analytics: create log: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("analytics: stat log: %w", err)
	}
	return nil
}

// prune reads the log, drops events outside the retention window and
// rewrites the file only when something was dropped.
func (l *Log) prune() ([]models.AnalyticsEvent, error) {
	events, dropped, err := l.read()
	if err != nil {
		return nil, err
	}

	threshold := l.now().Add(-l.retention)
	kept := events[:0]
	for _, e := range events {
		at, ok := e.RecordedAt()
		if ok && !at.Before(threshold) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(events) && dropped == 0 {
		return kept, nil
	}
	slog.Debug("analytics pruned",
		"expired", len(events)-len(kept), "malformed", dropped, "kept", len(kept))
	if err := l.write(kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// read parses every line of the log. Malformed lines are counted and skipped.
func (l *Log) read() (events []models.AnalyticsEvent, dropped int, err error) {
	data, err := util.ReadFile(l.fs, l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, l.ensure()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("analytics: read log: %w", err)
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e models.AnalyticsEvent
		if err := json.Unmarshal(line, &e); err != nil {
			dropped++
			continue
		}
		events = append(events, e)
	}
	return events, dropped, nil
}

// write replaces the log atomically: a temp file in the same directory is
// fully written, then renamed over the log.
func (l *Log) write(events []models.AnalyticsEvent) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("analytics: encode event %s: %w", events[i].RunID, err)
		}
	}

	tmp, err := l.fs.TempFile(filepath.Dir(l.path), ".analytics-")
	if err != nil {
		return fmt.Errorf("analytics: create temp file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = l.fs.Remove(tmp.Name())
		return fmt.Errorf("analytics: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = l.fs.Remove(tmp.Name())
		return fmt.Errorf("analytics: close temp file: %w", err)
	}
	if err := l.fs.Rename(tmp.Name(), l.path); err != nil {
		_ = l.fs.Remove(tmp.Name())
		return fmt.Errorf("analytics: replace log: %w", err)
	}
	return nil
}
