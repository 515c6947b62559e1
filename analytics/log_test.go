package analytics

import (
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pricelens/models"
)

const logPath = "data/analytics.ndjson"

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func at(t time.Time) *time.Time { return &t }

func event(id, user, status string, completed time.Time, domains ...string) models.AnalyticsEvent {
	return models.AnalyticsEvent{
		RunID:        id,
		UserID:       user,
		CreatedAt:    at(completed.Add(-time.Minute)),
		CompletedAt:  at(completed),
		TimeZone:     "UTC",
		DomainsCount: len(domains),
		Domains:      domains,
		PDFStatus:    status,
	}
}

func newLog(t *testing.T, fs billy.Filesystem) *Log {
	t.Helper()
	l, err := New(fs, logPath, Options{Now: clock})
	require.NoError(t, err)
	return l
}

func TestNew_CreatesEmptyLog(t *testing.T) {
	fs := memfs.New()
	l := newLog(t, fs)

	data, err := util.ReadFile(fs, logPath)
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.Equal(t, 90, l.RetentionDays())
}

func TestAppendAndList_NewestFirst(t *testing.T) {
	l := newLog(t, memfs.New())

	require.NoError(t, l.AppendEvent(event("r1", "alice", models.PDFStatusSuccess, now.Add(-3*time.Hour), "a.test")))
	require.NoError(t, l.AppendEvent(event("r2", "bob", models.PDFStatusFail, now.Add(-1*time.Hour), "b.test")))
	require.NoError(t, l.AppendEvent(event("r3", "alice", models.PDFStatusSuccess, now.Add(-2*time.Hour), "c.test")))

	runs, err := l.ListRuns(ListQuery{Limit: 50})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"r2", "r3", "r1"}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})
	assert.Equal(t, RetentionDays, runs[0].RetentionDays)

	runs, err = l.ListRuns(ListQuery{UserID: "alice", Limit: 50})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].RunID)

	runs, err = l.ListRuns(ListQuery{Limit: 0})
	require.NoError(t, err)
	assert.Len(t, runs, 1, "limit is clamped to at least one")
}

func TestListRuns_LimitCappedAt500(t *testing.T) {
	fs := memfs.New()
	l := newLog(t, fs)
	for i := 0; i < 510; i++ {
		require.NoError(t, l.AppendEvent(event("r", "u", models.PDFStatusSuccess, now.Add(-time.Duration(i)*time.Second))))
	}

	runs, err := l.ListRuns(ListQuery{Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, runs, 500)
}

func TestRetention_PrunedOnConstructionAndAppend(t *testing.T) {
	fs := memfs.New()
	l := newLog(t, fs)

	old := event("old", "alice", models.PDFStatusSuccess, now.Add(-91*24*time.Hour), "a.test")
	edge := event("edge", "alice", models.PDFStatusSuccess, now.Add(-90*24*time.Hour), "a.test")
	require.NoError(t, l.AppendEvent(old))
	require.NoError(t, l.AppendEvent(edge))

	// The old event was dropped when edge was appended.
	runs, err := l.ListRuns(ListQuery{Limit: 50})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "edge", runs[0].RunID)

	// A store opened a day later drops the edge event immediately.
	later := now.Add(24 * time.Hour)
	l2, err := New(fs, logPath, Options{Now: func() time.Time { return later }})
	require.NoError(t, err)
	data, err := util.ReadFile(fs, logPath)
	require.NoError(t, err)
	assert.Empty(t, data)

	summary, err := l2.GetSummary("")
	require.NoError(t, err)
	assert.Zero(t, summary.TotalRuns)
}

func TestRetention_FallsBackToCreatedAt(t *testing.T) {
	l := newLog(t, memfs.New())

	e := event("pending", "alice", models.PDFStatusFail, now)
	e.CompletedAt = nil
	e.CreatedAt = at(now.Add(-100 * 24 * time.Hour))
	require.NoError(t, l.AppendEvent(e))

	runs, err := l.ListRuns(ListQuery{Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRead_DropsMalformedLines(t *testing.T) {
	fs := memfs.New()
	good := `{"run_id":"ok","user_id":"alice","completed_at":"2026-05-31T12:00:00Z","pdf_status":"success","domains_count":1,"domains":["a.test"]}`
	content := good + "\n{not json\n\n" + `{"run_id":"undated","user_id":"bob"}` + "\n"
	require.NoError(t, fs.MkdirAll("data", 0o755))
	require.NoError(t, util.WriteFile(fs, logPath, []byte(content), 0o644))

	l := newLog(t, fs)
	runs, err := l.ListRuns(ListQuery{Limit: 50})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ok", runs[0].RunID)

	data, err := util.ReadFile(fs, logPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestGetSummary(t *testing.T) {
	l := newLog(t, memfs.New())
	events := []models.AnalyticsEvent{
		event("r1", "alice", models.PDFStatusSuccess, now.Add(-4*time.Hour), "a.test", "b.test"),
		event("r2", "bob", models.PDFStatusFail, now.Add(-3*time.Hour), "b.test"),
		event("r3", "carol", models.PDFStatusSuccess, now.Add(-2*time.Hour), "c.test", "a.test", "d.test"),
		event("r4", "bob", models.PDFStatusSuccess, now.Add(-1*time.Hour), "c.test"),
	}
	for _, e := range events {
		require.NoError(t, l.AppendEvent(e))
	}

	s, err := l.GetSummary("")
	require.NoError(t, err)
	assert.Equal(t, 90, s.RetentionDays)
	assert.Equal(t, 4, s.TotalRuns)
	assert.Equal(t, 3, s.PDFSuccessCount)
	assert.Equal(t, 1, s.PDFFailCount)
	assert.InDelta(t, 0.75, s.PDFSuccessRate, 1e-9)
	assert.Equal(t, 7, s.TotalUniqueDomainsProcessed)
	assert.InDelta(t, 1.75, s.AverageDomainsPerRun, 1e-9)
	assert.Equal(t, map[string]int{"success": 3, "fail": 1}, s.PDFStatusDistribution)

	// Ties keep first-seen order: a, b, c all have two visits.
	assert.Equal(t, []models.DomainCount{
		{Domain: "a.test", Count: 2},
		{Domain: "b.test", Count: 2},
		{Domain: "c.test", Count: 2},
		{Domain: "d.test", Count: 1},
	}, s.TopDomains)
	assert.Equal(t, []models.UserCount{
		{UserID: "bob", Runs: 2},
		{UserID: "alice", Runs: 1},
		{UserID: "carol", Runs: 1},
	}, s.TopUsers)

	s, err = l.GetSummary("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalRuns)
	assert.InDelta(t, 0.5, s.PDFSuccessRate, 1e-9)
}

func TestGetSummary_Empty(t *testing.T) {
	l := newLog(t, memfs.New())

	s, err := l.GetSummary("nobody")
	require.NoError(t, err)
	assert.Zero(t, s.TotalRuns)
	assert.Zero(t, s.PDFSuccessRate)
	assert.Zero(t, s.AverageDomainsPerRun)
	assert.NotNil(t, s.TopDomains)
	assert.NotNil(t, s.TopUsers)
}

func TestGetSummary_AverageRounded(t *testing.T) {
	l := newLog(t, memfs.New())
	require.NoError(t, l.AppendEvent(event("r1", "u", models.PDFStatusSuccess, now, "a.test")))
	require.NoError(t, l.AppendEvent(event("r2", "u", models.PDFStatusSuccess, now, "a.test")))
	require.NoError(t, l.AppendEvent(event("r3", "u", models.PDFStatusSuccess, now, "a.test", "b.test", "c.test", "d.test", "e.test")))

	s, err := l.GetSummary("")
	require.NoError(t, err)
	assert.Equal(t, 2.33, s.AverageDomainsPerRun)
}

func TestTopLists_CappedAtTwenty(t *testing.T) {
	events := make([]models.AnalyticsEvent, 0, 25)
	for i := 0; i < 25; i++ {
		id := string(rune('a' + i))
		events = append(events, event(id, id, models.PDFStatusSuccess, now, id+".test"))
	}
	s := summarize(events, RetentionDays)
	assert.Len(t, s.TopDomains, 20)
	assert.Len(t, s.TopUsers, 20)
	assert.Equal(t, "a.test", s.TopDomains[0].Domain)
}
