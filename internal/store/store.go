// Package store holds the process-wide activity cache and the dataVersion counter
// every view uses to detect that its copy of the server data may be stale.
package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
)

// Lister fetches activities from the server.
type Lister interface {
	ListActivities(ctx context.Context, filter attivita.Filter, bypassCache bool) ([]attivita.Record, error)
}

// Store caches the last loaded rows and publishes dataVersion changes. It is created
// once per process and never torn down.
type Store struct {
	lister Lister

	version atomic.Uint64
	loading atomic.Int32

	mu     sync.RWMutex
	rows   []attivita.Row
	filter attivita.Filter
	cached uint64

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan uint64
}

// New constructs a Store loading through lister.
func New(lister Lister) *Store {
	return &Store{
		lister: lister,
		subs:   make(map[int]chan uint64),
	}
}

// Version returns the current dataVersion.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Loading reports whether a Load is in flight. It is advisory: concurrent loads are
// neither rejected nor coalesced.
func (s *Store) Loading() bool {
	return s.loading.Load() > 0
}

// Rows returns a copy of the cached rows.
func (s *Store) Rows() []attivita.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]attivita.Row(nil), s.rows...)
}

// Load fetches rows matching filter, replaces the cache and bumps dataVersion. Without
// bypass, a cache filled for the same filter at the current version is served instead.
func (s *Store) Load(ctx context.Context, filter attivita.Filter, bypass bool) ([]attivita.Row, uint64, error) {
	if !bypass {
		s.mu.RLock()
		hit := s.cached != 0 && s.cached == s.Version() && s.filter == filter
		rows := append([]attivita.Row(nil), s.rows...)
		s.mu.RUnlock()
		if hit {
			return rows, s.Version(), nil
		}
	}

	s.loading.Add(1)
	defer s.loading.Add(-1)

	records, err := s.lister.ListActivities(ctx, filter, bypass)
	if err != nil {
		return nil, s.Version(), err
	}
	rows := attivita.NormalizeAll(records)
	attivita.Sort(rows)

	s.mu.Lock()
	s.rows = rows
	s.filter = filter
	version := s.bump()
	s.cached = version
	s.mu.Unlock()

	return append([]attivita.Row(nil), rows...), version, nil
}

// NotifyChanged bumps dataVersion without touching the cache, telling every observer
// that a refresh is warranted.
func (s *Store) NotifyChanged() uint64 {
	return s.bump()
}

func (s *Store) bump() uint64 {
	v := s.version.Add(1)
	observability.SetDataVersion(v)
	s.publish(v)
	return v
}

// Subscribe returns a channel receiving the latest dataVersion after every bump.
// Notifications coalesce: a slow reader sees only the newest value. The returned
// function cancels the subscription.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(v uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// Replace the stale pending value with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
