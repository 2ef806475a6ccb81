// Package persist decouples in-memory mutation from durable writes.
package persist

import (
	"sync"
	"time"
)

// Scheduler runs at most one pending function per collection, trailing-edge
// debounced: scheduling again before the delay elapses cancels the previous
// entry and restarts the delay.
//
// While suspended, Schedule is a no-op.
type Scheduler struct {
	mu        sync.Mutex
	entries   map[string]*entry
	suspended bool
	running   sync.WaitGroup
}

type entry struct {
	timer *time.Timer
	fn    func()
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{entries: make(map[string]*entry)}
}

// Schedule replaces any pending entry for collection with fn, due after delay.
func (s *Scheduler) Schedule(collection string, fn func(), delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.suspended {
		return
	}
	if prev, ok := s.entries[collection]; ok {
		prev.timer.Stop()
	}
	e := &entry{fn: fn}
	e.timer = time.AfterFunc(delay, func() { s.fire(collection, e) })
	s.entries[collection] = e
}

// fire runs e unless it was replaced or cancelled after its timer started.
func (s *Scheduler) fire(collection string, e *entry) {
	s.mu.Lock()
	if s.entries[collection] != e {
		s.mu.Unlock()
		return
	}
	delete(s.entries, collection)
	s.running.Add(1)
	s.mu.Unlock()

	defer s.running.Done()
	e.fn()
}

// Pending reports whether collection has an entry waiting to fire.
func (s *Scheduler) Pending(collection string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[collection]
	return ok
}

// Cancel drops the pending entry for collection, if any.
func (s *Scheduler) Cancel(collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[collection]; ok {
		e.timer.Stop()
		delete(s.entries, collection)
	}
}

// CancelAll drops every pending entry.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
}

func (s *Scheduler) dropLocked() {
	for c, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, c)
	}
}

// Suspend drops every pending entry, rejects new ones until Resume and waits
// for entries whose timer already fired to finish running.
func (s *Scheduler) Suspend() {
	s.mu.Lock()
	s.suspended = true
	s.dropLocked()
	s.mu.Unlock()

	s.running.Wait()
}

// Resume accepts new entries again.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.suspended = false
	s.mu.Unlock()
}

// Flush runs every pending entry now, on the calling goroutine.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	due := make([]*entry, 0, len(s.entries))
	for c, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, c)
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		e.fn()
	}
}
