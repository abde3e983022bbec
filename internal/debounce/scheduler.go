// Package debounce coalesces bursts of per-key updates into a single call issued once
// the key has been quiet for a fixed delay.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the idle period used when New receives a non-positive delay.
const DefaultDelay = 500 * time.Millisecond

// Scheduler runs one independent timer per key. Only the latest payload scheduled for
// a key reaches the save function.
type Scheduler[K comparable, P any] struct {
	delay time.Duration
	save  func(K, P)

	mu      sync.Mutex
	pending map[K]*entry[P]
	seq     uint64
	stopped bool
}

type entry[P any] struct {
	timer   *time.Timer
	payload P
	seq     uint64
}

// New constructs a Scheduler calling save on its own goroutine after delay.
func New[K comparable, P any](delay time.Duration, save func(K, P)) *Scheduler[K, P] {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler[K, P]{
		delay:   delay,
		save:    save,
		pending: make(map[K]*entry[P]),
	}
}

// Delay returns the configured idle period.
func (s *Scheduler[K, P]) Delay() time.Duration {
	return s.delay
}

// Schedule cancels any pending timer for key and starts a new one carrying payload.
// Calls after Stop are ignored.
func (s *Scheduler[K, P]) Schedule(key K, payload P) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if e, ok := s.pending[key]; ok {
		e.timer.Stop()
	}
	s.seq++
	e := &entry[P]{payload: payload, seq: s.seq}
	seq := s.seq
	e.timer = time.AfterFunc(s.delay, func() { s.fire(key, seq) })
	s.pending[key] = e
}

// fire runs the save for key unless the timer was superseded, cancelled or stopped
// between expiry and acquiring the lock.
func (s *Scheduler[K, P]) fire(key K, seq uint64) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if !ok || e.seq != seq || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)
	s.mu.Unlock()

	s.save(key, e.payload)
}

// Cancel drops the pending save for key, reporting whether one existed.
func (s *Scheduler[K, P]) Cancel(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending reports whether a save is waiting for key.
func (s *Scheduler[K, P]) Pending(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// Len returns the number of keys with a waiting save.
func (s *Scheduler[K, P]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush fires every pending save immediately on the caller's goroutine.
func (s *Scheduler[K, P]) Flush() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	type job struct {
		key     K
		payload P
	}
	jobs := make([]job, 0, len(s.pending))
	for key, e := range s.pending {
		e.timer.Stop()
		jobs = append(jobs, job{key: key, payload: e.payload})
	}
	clear(s.pending)
	s.mu.Unlock()

	for _, j := range jobs {
		s.save(j.key, j.payload)
	}
}

// Stop cancels every pending timer without firing it. No save starts after Stop
// returns; one already running is not interrupted.
func (s *Scheduler[K, P]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for key, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, key)
	}
}
