// Package reconcile implements the activity table: it owns the locally editable rows
// and keeps them converging on the server, which is the only source of truth.
//
// All row state belongs to a single event-loop goroutine per mount. Server calls run
// on their own goroutines and hand their results back to that loop, so handlers never
// race each other. Results that arrive after Unmount are dropped.
package reconcile

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/datewindow"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/debounce"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/store"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/suppression"
)

var (
	// ErrNotMounted is returned by operations issued while the table is not mounted.
	ErrNotMounted = errors.New("reconcile: table not mounted")
	// ErrAlreadyMounted is returned by Mount on a mounted table.
	ErrAlreadyMounted = errors.New("reconcile: table already mounted")
	// ErrRowNotFound is returned for keys that match no visible row.
	ErrRowNotFound = errors.New("reconcile: row not found")
	// ErrDeleteCancelled is returned when the confirmation step declines a delete.
	ErrDeleteCancelled = errors.New("reconcile: delete cancelled")
)

// User-visible messages, one per failed operation category.
const (
	MsgLoadFailed       = "Errore durante il caricamento delle attività"
	MsgSaveFailed       = "Errore durante il salvataggio dell'attività"
	MsgDeleteFailed     = "Errore durante l'eliminazione dell'attività"
	MsgAutoCreateFailed = "Errore durante la creazione automatica dell'attività di oggi"
)

// API is the server collaborator.
type API interface {
	ListActivities(ctx context.Context, filter attivita.Filter, bypassCache bool) ([]attivita.Record, error)
	CreateActivity(ctx context.Context, payload attivita.Payload) (attivita.Record, error)
	UpdateActivity(ctx context.Context, id int64, payload attivita.Payload) (attivita.Record, error)
	DeleteActivity(ctx context.Context, id int64) error
}

// Confirmer gates the deletion of persisted rows.
type Confirmer interface {
	ConfirmDelete(row attivita.Row) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(attivita.Row) bool

// ConfirmDelete implements Confirmer.
func (f ConfirmFunc) ConfirmDelete(row attivita.Row) bool { return f(row) }

// Config holds the tunables of the table.
type Config struct {
	// UserID owns the rows shown and created by the table.
	UserID string
	// DebounceDelay is the idle period before an edited row is saved.
	DebounceDelay time.Duration
	// DeleteSettleDelay is awaited between a successful delete and the reconciling reload.
	DeleteSettleDelay time.Duration
	// LookbackDays bounds how far back the default view loads rows.
	LookbackDays int
	// RequestTimeout bounds every server call.
	RequestTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = debounce.DefaultDelay
	}
	if c.DeleteSettleDelay < 0 {
		c.DeleteSettleDelay = 0
	}
	if c.LookbackDays <= 0 {
		c.LookbackDays = 60
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	return c
}

// Option configures optional behaviour for the Reconciler.
type Option func(*Reconciler)

// WithLogger overrides the logger used to report failures.
func WithLogger(logger *log.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithWindow overrides the clock and working-day policy.
func WithWindow(w datewindow.Window) Option {
	return func(r *Reconciler) {
		r.window = w
	}
}

// WithConfirmer sets the delete confirmation step. Without one, deletes proceed.
func WithConfirmer(c Confirmer) Option {
	return func(r *Reconciler) {
		r.confirm = c
	}
}

// Reconciler is the activity table. It can be mounted and unmounted repeatedly; every
// mount starts from an empty local cache.
type Reconciler struct {
	api        API
	store      *store.Store
	suppressed *suppression.Set
	window     datewindow.Window
	confirm    Confirmer
	cfg        Config
	logger     *log.Logger

	changes chan struct{}

	mu      sync.Mutex
	current *mount
}

// New constructs an unmounted Reconciler.
func New(api API, st *store.Store, suppressed *suppression.Set, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		api:        api,
		store:      st,
		suppressed: suppressed,
		cfg:        cfg.withDefaults(),
		logger:     log.NewWithOptions(os.Stderr, log.Options{Prefix: "reconcile"}),
		changes:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Changes signals, coalesced, that View may return something new.
func (r *Reconciler) Changes() <-chan struct{} {
	return r.changes
}

func (r *Reconciler) signal() {
	select {
	case r.changes <- struct{}{}:
	default:
	}
}

// Mount clears local state, reads the suppression set and issues the first forced
// reload. Nothing from a previous mount, nor the shared store's cache, is reused.
func (r *Reconciler) Mount(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return ErrAlreadyMounted
	}

	r.suppressed.Load(ctx)
	versions, unsubscribe := r.store.Subscribe()
	m := newMount(r)
	m.lastSeen = r.store.Version()
	r.current = m

	go m.run(versions, unsubscribe)
	m.post(func() { m.reload(reasonMount) })
	return nil
}

// Unmount cancels every pending debounced save without firing it and stops the event
// loop. Server calls already in flight complete, but their results are discarded.
func (r *Reconciler) Unmount() {
	r.mu.Lock()
	m := r.current
	r.current = nil
	r.mu.Unlock()
	if m == nil {
		return
	}
	m.saver.Stop()
	close(m.done)
	<-m.stopped
}

func (r *Reconciler) active() *mount {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// call runs fn on the event loop and waits for it.
func (r *Reconciler) call(fn func(m *mount)) error {
	m := r.active()
	if m == nil {
		return ErrNotMounted
	}
	reply := make(chan struct{})
	if !m.post(func() { fn(m); close(reply) }) {
		return ErrNotMounted
	}
	select {
	case <-reply:
		return nil
	case <-m.done:
		select {
		case <-reply:
			return nil
		default:
			return ErrNotMounted
		}
	}
}

// UpdateField writes value into a row immediately and schedules its debounced save.
// Invalid input is rejected and leaves the row untouched.
func (r *Reconciler) UpdateField(key string, field attivita.Field, value string) error {
	var err error
	callErr := r.call(func(m *mount) { err = m.updateField(key, field, value) })
	if callErr != nil {
		return callErr
	}
	return err
}

// SelectClient applies an accepted autocomplete suggestion to a row.
func (r *Reconciler) SelectClient(key string, clientID int64, name string) error {
	var err error
	callErr := r.call(func(m *mount) { err = m.selectClient(key, clientID, name) })
	if callErr != nil {
		return callErr
	}
	return err
}

// AddRow inserts an empty draft row for date and returns its key. The draft is created
// server-side on its first edit.
func (r *Reconciler) AddRow(date string) (string, error) {
	if _, err := attivita.ParseDate(date); err != nil {
		return "", err
	}
	var key string
	err := r.call(func(m *mount) { key = m.addRow(date) })
	return key, err
}

// Submit validates a row and saves it immediately instead of waiting for the debounce.
func (r *Reconciler) Submit(key string) error {
	var err error
	callErr := r.call(func(m *mount) { err = m.submit(key) })
	if callErr != nil {
		return callErr
	}
	return err
}

// DeleteRow removes a row. Temporary rows vanish locally; persisted rows are confirmed
// first, hidden at once, then deleted on the server and reconciled by a reload.
func (r *Reconciler) DeleteRow(key string) error {
	var (
		row   attivita.Row
		found bool
	)
	if err := r.call(func(m *mount) { row, found = m.visibleRow(key) }); err != nil {
		return err
	}
	if !found {
		return ErrRowNotFound
	}
	if !row.IsTemporary() && r.confirm != nil && !r.confirm.ConfirmDelete(row) {
		return ErrDeleteCancelled
	}

	var err error
	callErr := r.call(func(m *mount) { err = m.deleteRow(key) })
	if callErr != nil {
		return callErr
	}
	return err
}

// Reload forces a full reload from the server.
func (r *Reconciler) Reload() error {
	return r.call(func(m *mount) { m.reload(reasonManual) })
}

// SetExpanded switches between the default window view and the expanded period view.
func (r *Reconciler) SetExpanded(expanded bool) error {
	return r.call(func(m *mount) {
		if m.expanded == expanded {
			return
		}
		m.expanded = expanded
		m.reload(reasonFilter)
	})
}

// SetPeriod changes the period filter of the expanded view.
func (r *Reconciler) SetPeriod(p datewindow.Period) error {
	return r.call(func(m *mount) {
		if m.period == p {
			return
		}
		m.period = p
		if m.expanded {
			m.reload(reasonFilter)
		} else {
			m.changed()
		}
	})
}

// DismissError clears the user-visible error message.
func (r *Reconciler) DismissError() error {
	return r.call(func(m *mount) {
		m.errMsg = ""
		m.changed()
	})
}

// Flush fires every pending debounced save now.
func (r *Reconciler) Flush() error {
	m := r.active()
	if m == nil {
		return ErrNotMounted
	}
	m.saver.Flush()
	return nil
}

// WaitIdle blocks until no save, delete or load is outstanding.
func (r *Reconciler) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		var busy bool
		if err := r.call(func(m *mount) { busy = m.busy() }); err != nil {
			return err
		}
		if !busy {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// View returns what the table currently shows.
func (r *Reconciler) View() (View, error) {
	var v View
	err := r.call(func(m *mount) { v = m.view() })
	return v, err
}
