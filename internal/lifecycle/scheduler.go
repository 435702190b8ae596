package lifecycle

import (
	"sync"
	"time"
)

// CompletionScheduler runs deferred jobs keyed by sale id. It backs the
// automatic completion that fires a grace period after delivery
// confirmation. A job can be cancelled up until the moment it fires,
// which is how manual completion and cancellation stop an in-flight
// auto-completion from racing them; the job itself must still re-check
// state, since Cancel and the timer firing can interleave.
type CompletionScheduler struct {
	mu     sync.Mutex
	timers map[uint64]*time.Timer
}

// NewCompletionScheduler returns an empty scheduler.
func NewCompletionScheduler() *CompletionScheduler {
	return &CompletionScheduler{timers: make(map[uint64]*time.Timer)}
}

// Schedule arranges for fn to run after delay. Scheduling again for the
// same sale id replaces any pending job for that id.
func (s *CompletionScheduler) Schedule(saleID uint64, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[saleID]; ok {
		t.Stop()
	}
	s.timers[saleID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, saleID)
		s.mu.Unlock()
		fn()
	})
}

// Cancel stops the pending job for a sale id, if any. It reports whether
// a job was still pending. A false return does not mean the job ran; it
// may simply never have been scheduled.
func (s *CompletionScheduler) Cancel(saleID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[saleID]
	if !ok {
		return false
	}
	delete(s.timers, saleID)
	return t.Stop()
}

// Pending returns the number of jobs that have not yet fired.
func (s *CompletionScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending job. Used at shutdown.
func (s *CompletionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
