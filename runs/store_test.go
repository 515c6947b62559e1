package runs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pricelens/models"
)

func TestStore_GetReturnsSnapshot(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()
	s.Put(&models.Run{ID: "r1", Status: models.RunRunning, Domains: []string{"a.test"}})

	snap, ok := s.Get("r1")
	require.True(t, ok)
	snap.Domains[0] = "mutated.test"
	snap.Status = models.RunFailed

	again, _ := s.Get("r1")
	assert.Equal(t, "a.test", again.Domains[0])
	assert.Equal(t, models.RunRunning, again.Status)
}

func TestStore_Update(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()
	s.Put(&models.Run{ID: "r1"})

	assert.True(t, s.Update("r1", func(r *models.Run) { r.DownloadCount = 7 }))
	assert.False(t, s.Update("missing", func(r *models.Run) { t.Fatal("must not be called") }))

	r, _ := s.Get("r1")
	assert.Equal(t, 7, r.DownloadCount)
}

func TestStore_EvictionAndReschedule(t *testing.T) {
	s := NewStore(200 * time.Millisecond)
	defer s.Close()
	s.Put(&models.Run{ID: "r1", Status: models.RunDone})
	s.ScheduleEviction("r1")

	time.Sleep(120 * time.Millisecond)
	s.ScheduleEviction("r1")
	time.Sleep(120 * time.Millisecond)
	_, ok := s.Get("r1")
	assert.True(t, ok, "rescheduling restarts the TTL")

	assert.Eventually(t, func() bool {
		_, ok := s.Get("r1")
		return !ok
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Len())
}

func TestStore_CloseStopsTimers(t *testing.T) {
	s := NewStore(10 * time.Millisecond)
	s.Put(&models.Run{ID: "r1", Status: models.RunDone})
	s.ScheduleEviction("r1")
	s.Close()

	time.Sleep(40 * time.Millisecond)
	_, ok := s.Get("r1")
	assert.True(t, ok)

	s.ScheduleEviction("r1")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, s.Len())
}

func TestStore_DeleteAndActive(t *testing.T) {
	s := NewStore(time.Hour)
	defer s.Close()
	s.Put(&models.Run{ID: "q", Status: models.RunQueued})
	s.Put(&models.Run{ID: "r", Status: models.RunRunning})
	s.Put(&models.Run{ID: "d", Status: models.RunDone})
	assert.Equal(t, 2, s.Active())

	s.ScheduleEviction("d")
	s.Delete("d")
	_, ok := s.Get("d")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}
