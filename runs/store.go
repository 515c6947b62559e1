package runs

import (
	"sync"
	"time"

	"github.com/use-agent/pricelens/models"
)

// Store keeps live runs in memory and evicts terminal runs after a TTL.
// Eviction timers never keep the process alive.
type Store struct {
	mu     sync.Mutex
	runs   map[string]*models.Run
	timers map[string]*time.Timer
	ttl    time.Duration
	closed bool
}

// NewStore creates a Store whose runs are evicted ttl after ScheduleEviction.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		runs:   make(map[string]*models.Run),
		timers: make(map[string]*time.Timer),
		ttl:    ttl,
	}
}

// Put adds or replaces a run.
func (s *Store) Put(run *models.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

// Get returns a snapshot of the run.
func (s *Store) Get(id string) (*models.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	return run.Clone(), true
}

// Update applies fn to the live run under the store lock and reports
// whether the run exists. fn must not block.
func (s *Store) Update(id string, fn func(run *models.Run)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return false
	}
	fn(run)
	return true
}

// Delete removes the run and cancels its eviction timer.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
}

func (s *Store) deleteLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	if run, ok := s.runs[id]; ok {
		run.Document = nil
		delete(s.runs, id)
	}
}

// ScheduleEviction removes the run after the store TTL. Scheduling again
// replaces the previous timer.
func (s *Store) ScheduleEviction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.ttl, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A rescheduled run owns a newer timer; leave it alone.
		if s.timers[id] != timer {
			return
		}
		delete(s.timers, id)
		if run, ok := s.runs[id]; ok {
			run.Document = nil
			delete(s.runs, id)
		}
	})
	s.timers[id] = timer
}

// Len returns the number of runs held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Active returns the number of runs that have not reached a terminal state.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, run := range s.runs {
		if !run.Status.Terminal() {
			n++
		}
	}
	return n
}

// Close stops every pending eviction timer.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
