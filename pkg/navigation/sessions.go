package navigation

import (
	"sort"
	"sync"
)

// Sessions keeps one Tracker per driver.
type Sessions struct {
	mu       sync.RWMutex
	router   Router
	cfg      Config
	opts     []Option
	trackers map[string]*Tracker
}

func NewSessions(router Router, cfg Config, opts ...Option) *Sessions {
	return &Sessions{
		router:   router,
		cfg:      cfg,
		opts:     opts,
		trackers: make(map[string]*Tracker),
	}
}

func (s *Sessions) Get(driverID string) (*Tracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trackers[driverID]
	return t, ok
}

func (s *Sessions) GetOrCreate(driverID string) *Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[driverID]
	if !ok {
		t = NewTracker(s.router, s.cfg, s.opts...)
		s.trackers[driverID] = t
	}
	return t
}

func (s *Sessions) Remove(driverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trackers[driverID]
	delete(s.trackers, driverID)
	return ok
}

func (s *Sessions) Drivers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.trackers))
	for id := range s.trackers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
