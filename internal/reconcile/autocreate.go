package reconcile

import (
	"context"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
)

// maybeAutoCreate creates today's row when today is a working day, has no row and was
// not suppressed by a deletion. It runs at most once per date for each mount.
func (m *mount) maybeAutoCreate() {
	today := m.r.window.Today()
	if m.autoCreating || m.lastAutoCreated == today || !m.coverage.Matches(today) {
		return
	}
	for _, row := range m.rows {
		if row.Date != today {
			continue
		}
		if !row.IsPlaceholder() || m.editing(row.Key()) {
			return
		}
	}
	if !m.r.window.IsWorkingDay(today) || m.r.suppressed.Has(today) || m.deletingDates[today] > 0 {
		return
	}

	m.lastAutoCreated = today
	m.autoCreating = true
	key := attivita.PlaceholderID(today)
	m.saving[key] = true
	payload := attivita.Placeholder(today).Payload(m.r.cfg.UserID)
	payload.IdempotencyKey = m.createKey(key)
	m.async(func(ctx context.Context) func() {
		rec, err := m.r.api.CreateActivity(ctx, payload)
		return func() { m.onAutoCreated(key, rec, err) }
	})
}

func (m *mount) onAutoCreated(key string, rec attivita.Record, err error) {
	m.autoCreating = false
	delete(m.saving, key)
	observability.RecordAutoCreate(err)
	if err != nil {
		m.r.logger.Error("failed to create today's activity", "row", key, "err", err)
		m.errMsg = MsgAutoCreateFailed
		m.changed()
		return
	}
	delete(m.createKeys, key)
	if m.discarded[key] {
		delete(m.discarded, key)
		m.removeCreated(rec)
		return
	}
	m.adopt(key, rec)
	m.r.store.NotifyChanged()
	m.changed()
}
