package status

import (
	"sync"
	"time"

	"codeberg.org/mutker/ecfanctl/internal/metrics"
)

// Store keeps a copy of the most recent tick. It is written by the control
// loop and read by HTTP handlers.
type Store struct {
	mu      sync.RWMutex
	last    metrics.TickSnapshot
	ticks   uint64
	started time.Time
}

func NewStore() *Store {
	return &Store{started: time.Now()}
}

func (s *Store) Update(snapshot metrics.TickSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = snapshot
	s.ticks++
}

// Last returns the latest tick and false when none has been recorded yet.
func (s *Store) Last() (metrics.TickSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.last, s.ticks > 0
}

func (s *Store) Ticks() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ticks
}

func (s *Store) Uptime() time.Duration {
	return time.Since(s.started)
}
