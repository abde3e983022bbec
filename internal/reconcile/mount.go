package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/datewindow"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/debounce"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
)

const (
	reasonMount       = "mount"
	reasonManual      = "manual"
	reasonFilter      = "filter"
	reasonVersion     = "version"
	reasonDelete      = "delete"
	reasonDeleteError = "delete_error"
)

// mount is the state of one mounted lifetime. Every field below the channels is owned
// by the event loop.
type mount struct {
	r       *Reconciler
	events  chan func()
	done    chan struct{}
	stopped chan struct{}
	saver   *debounce.Scheduler[string, attivita.Row]

	rows      []attivita.Row
	hidden    map[int64]struct{}
	saving    map[string]bool
	aliases   map[string]string
	discarded map[string]bool

	loadSeq  uint64
	loading  bool
	loaded   bool
	lastSeen uint64
	// coverage is the filter of the last applied load; placeholders and auto-create
	// only consider dates inside it.
	coverage attivita.Filter

	lastAutoCreated string
	autoCreating    bool
	deleting        int
	// deletingDates counts server deletes in flight per date. Those dates get no
	// placeholder and no automatic row until the delete settles.
	deletingDates map[string]int
	// createKeys holds the idempotency key of each temporary row's create, kept
	// until the create succeeds so a retried create is recognised by the server.
	createKeys map[string]string

	expanded bool
	period   datewindow.Period
	errMsg   string
}

func newMount(r *Reconciler) *mount {
	m := &mount{
		r:             r,
		events:        make(chan func(), 64),
		done:          make(chan struct{}),
		stopped:       make(chan struct{}),
		hidden:        make(map[int64]struct{}),
		saving:        make(map[string]bool),
		aliases:       make(map[string]string),
		discarded:     make(map[string]bool),
		deletingDates: make(map[string]int),
		createKeys:    make(map[string]string),
		period:        datewindow.Period{Kind: datewindow.PeriodAll},
	}
	m.saver = debounce.New(r.cfg.DebounceDelay, func(key string, row attivita.Row) {
		m.post(func() { m.flushRow(key, row) })
	})
	return m
}

func (m *mount) run(versions <-chan uint64, unsubscribe func()) {
	defer close(m.stopped)
	defer unsubscribe()
	for {
		select {
		case <-m.done:
			return
		case fn := <-m.events:
			fn()
		case <-versions:
			m.onVersion()
		}
	}
}

// post hands fn to the event loop. It reports false once the mount is gone.
func (m *mount) post(fn func()) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.events <- fn:
		return true
	case <-m.done:
		return false
	}
}

// async runs call on its own goroutine with a bounded context and posts complete back.
func (m *mount) async(call func(ctx context.Context) func()) {
	timeout := m.r.cfg.RequestTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		complete := call(ctx)
		m.post(complete)
	}()
}

func (m *mount) changed() {
	m.r.signal()
}

func (m *mount) now() time.Time {
	if m.r.window.Now != nil {
		return m.r.window.Now()
	}
	return time.Now()
}

func (m *mount) loadFilter() attivita.Filter {
	f := attivita.Filter{UserID: m.r.cfg.UserID}
	if m.expanded {
		f.From, f.To = m.period.Range(m.now())
		return f
	}
	f.From = datewindow.ISODate(m.now().AddDate(0, 0, -m.r.cfg.LookbackDays))
	return f
}

// reload issues a forced full reload. Only the most recently issued load may apply.
func (m *mount) reload(reason string) {
	m.loadSeq++
	seq := m.loadSeq
	issued := m.r.store.Version()
	filter := m.loadFilter()
	started := time.Now()
	m.loading = true
	m.changed()

	m.async(func(ctx context.Context) func() {
		records, err := m.r.api.ListActivities(ctx, filter, true)
		return func() { m.onLoaded(seq, issued, reason, filter, started, records, err) }
	})
}

// invalidateLoads discards every load currently in flight.
func (m *mount) invalidateLoads() {
	m.loadSeq++
	m.loading = false
}

func (m *mount) onLoaded(seq, issued uint64, reason string, filter attivita.Filter, started time.Time, records []attivita.Record, err error) {
	if seq != m.loadSeq {
		return
	}
	m.loading = false
	if err != nil {
		m.r.logger.Error("failed to load activities", "reason", reason, "err", err)
		m.errMsg = MsgLoadFailed
		m.changed()
		return
	}
	observability.RecordReload(reason, time.Since(started))

	m.rows = m.merge(attivita.NormalizeAll(records))
	clear(m.hidden)
	m.loaded = true
	m.coverage = filter
	if issued > m.lastSeen {
		m.lastSeen = issued
	}
	m.clearObservedSuppressions()
	m.ensurePlaceholders()
	m.maybeAutoCreate()
	m.changed()

	if m.r.store.Version() > m.lastSeen {
		m.reload(reasonVersion)
	}
}

// onVersion reacts to a data-version bump from any component. A load in flight
// re-checks the version when it lands, so nothing is issued meanwhile.
func (m *mount) onVersion() {
	if !m.loaded || m.loading {
		return
	}
	if m.r.store.Version() > m.lastSeen {
		m.reload(reasonVersion)
	}
}

func (m *mount) editing(key string) bool {
	return m.saving[key] || m.saver.Pending(key)
}

// merge replaces the local rows with the server's, except rows with pending or
// in-flight edits which keep their local fields.
func (m *mount) merge(server []attivita.Row) []attivita.Row {
	index := make(map[string]int, len(server))
	for i, row := range server {
		index[row.Key()] = i
	}
	for _, local := range m.rows {
		key := local.Key()
		if !m.editing(key) {
			continue
		}
		if local.IsTemporary() {
			server = append(server, local)
			continue
		}
		if i, ok := index[key]; ok {
			server[i] = local
			continue
		}
		// Deleted elsewhere: the server wins and the queued update is dropped.
		if m.saver.Cancel(key) {
			m.r.logger.Warn("dropping edit of a row deleted on the server", "row", key)
		}
	}
	return server
}

// clearObservedSuppressions lifts suppression for dates that now hold a persisted row.
func (m *mount) clearObservedSuppressions() {
	for _, row := range m.rows {
		if !row.IsTemporary() && m.r.suppressed.Has(row.Date) {
			m.r.suppressed.Clear(context.Background(), row.Date)
		}
	}
}

// ensurePlaceholders keeps exactly one placeholder for every window date that has no
// other row and is not suppressed.
func (m *mount) ensurePlaceholders() {
	occupied := make(map[string]bool)
	for _, row := range m.rows {
		if row.IsPlaceholder() && !m.editing(row.Key()) {
			continue
		}
		occupied[row.Date] = true
	}
	for date := range m.deletingDates {
		occupied[date] = true
	}

	kept := m.rows[:0]
	seen := make(map[string]bool)
	for _, row := range m.rows {
		if row.IsPlaceholder() && !m.editing(row.Key()) {
			if occupied[row.Date] || seen[row.Date] || !m.r.window.Contains(row.Date) || m.r.suppressed.Has(row.Date) {
				continue
			}
			seen[row.Date] = true
		}
		kept = append(kept, row)
	}
	m.rows = kept

	for _, day := range m.r.window.CurrentWorkingWindow() {
		if occupied[day.Date] || seen[day.Date] || m.r.suppressed.Has(day.Date) || !m.coverage.Matches(day.Date) {
			continue
		}
		m.rows = append(m.rows, attivita.Placeholder(day.Date))
	}
	attivita.Sort(m.rows)
}

// createKey returns the idempotency key for creating the temporary row tempKey.
func (m *mount) createKey(tempKey string) string {
	key, ok := m.createKeys[tempKey]
	if !ok {
		key = uuid.NewString()
		m.createKeys[tempKey] = key
	}
	return key
}

func (m *mount) resolve(key string) string {
	if alias, ok := m.aliases[key]; ok {
		return alias
	}
	return key
}

func (m *mount) indexOf(key string) int {
	key = m.resolve(key)
	for i, row := range m.rows {
		if row.Key() == key {
			return i
		}
	}
	return -1
}

func (m *mount) isHidden(row attivita.Row) bool {
	if row.IsTemporary() {
		return false
	}
	_, ok := m.hidden[row.ID]
	return ok
}

func (m *mount) visibleRow(key string) (attivita.Row, bool) {
	i := m.indexOf(key)
	if i < 0 || m.isHidden(m.rows[i]) {
		return attivita.Row{}, false
	}
	return m.rows[i], true
}

func (m *mount) busy() bool {
	return m.loading || m.autoCreating || m.deleting > 0 || len(m.saving) > 0 || m.saver.Len() > 0
}
