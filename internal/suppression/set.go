// Package suppression remembers the dates for which the activity table must not
// create a row automatically, typically because the operator deleted the one it made.
package suppression

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/session"
)

// StorageKey is the session storage key holding the JSON array of suppressed dates.
const StorageKey = "attivita.autocreate.suppressed"

// Option configures a Set.
type Option func(*Set)

// WithLogger overrides the logger used to report storage failures.
func WithLogger(logger *log.Logger) Option {
	return func(s *Set) {
		s.logger = logger
	}
}

// Set is the in-memory view of the suppressed dates, written through to session storage.
type Set struct {
	storage session.Storage
	logger  *log.Logger

	mu    sync.RWMutex
	dates map[string]struct{}
}

// New constructs an empty Set over storage. Call Load to read persisted dates.
func New(storage session.Storage, opts ...Option) *Set {
	s := &Set{
		storage: storage,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "suppression"}),
		dates:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory set with the persisted one. Missing or corrupt data
// yields an empty set; Load never fails.
func (s *Set) Load(ctx context.Context) []string {
	dates := make(map[string]struct{})

	raw, ok, err := s.storage.Get(ctx, StorageKey)
	switch {
	case err != nil:
		s.logger.Warn("read suppressed dates", "err", err)
	case ok:
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			s.logger.Warn("discarding corrupt suppressed dates", "err", err)
		} else {
			for _, d := range list {
				if d != "" {
					dates[d] = struct{}{}
				}
			}
		}
	}

	s.mu.Lock()
	s.dates = dates
	s.mu.Unlock()
	return s.Dates()
}

// Has reports whether date is suppressed.
func (s *Set) Has(date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dates[date]
	return ok
}

// Dates returns the suppressed dates in ascending order.
func (s *Set) Dates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.dates))
	for d := range s.dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Suppress adds date and persists the set.
func (s *Set) Suppress(ctx context.Context, date string) {
	s.mu.Lock()
	if _, ok := s.dates[date]; ok {
		s.mu.Unlock()
		return
	}
	s.dates[date] = struct{}{}
	s.mu.Unlock()
	s.persist(ctx)
}

// Clear removes date and persists the set.
func (s *Set) Clear(ctx context.Context, date string) {
	s.mu.Lock()
	if _, ok := s.dates[date]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.dates, date)
	s.mu.Unlock()
	s.persist(ctx)
}

func (s *Set) persist(ctx context.Context) {
	dates := s.Dates()
	if len(dates) == 0 {
		if err := s.storage.Remove(ctx, StorageKey); err != nil {
			s.logger.Warn("remove suppressed dates", "err", err)
		}
		return
	}
	body, err := json.Marshal(dates)
	if err != nil {
		s.logger.Warn("encode suppressed dates", "err", err)
		return
	}
	if err := s.storage.Set(ctx, StorageKey, string(body)); err != nil {
		s.logger.Warn("write suppressed dates", "err", err)
	}
}
