package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
)

func (m *mount) deleteRow(key string) error {
	i := m.indexOf(key)
	if i < 0 || m.isHidden(m.rows[i]) {
		return ErrRowNotFound
	}
	row := m.rows[i]
	editPending := m.saver.Cancel(row.Key())

	if row.IsTemporary() {
		if m.saving[row.Key()] {
			m.discarded[row.Key()] = true
		}
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
		m.r.suppressed.Suppress(context.Background(), row.Date)
		m.ensurePlaceholders()
		m.changed()
		return nil
	}

	m.hidden[row.ID] = struct{}{}
	m.deleting++
	m.deletingDates[row.Date]++
	m.changed()
	m.async(func(ctx context.Context) func() {
		err := m.r.api.DeleteActivity(ctx, row.ID)
		return func() { m.onDeleted(row, editPending, err) }
	})
	return nil
}

// onDeleted settles a server delete. editPending reports whether the delete cancelled
// a debounced save of the row; on failure that save is queued again.
func (m *mount) onDeleted(row attivita.Row, editPending bool, err error) {
	m.deleting--
	if m.deletingDates[row.Date]--; m.deletingDates[row.Date] <= 0 {
		delete(m.deletingDates, row.Date)
	}
	if errors.Is(err, attivita.ErrNotFound) {
		err = nil
	}
	observability.RecordDelete(err)
	if err != nil {
		m.r.logger.Error("failed to delete activity", "id", row.ID, "err", err)
		delete(m.hidden, row.ID)
		if editPending {
			if i := m.indexOf(row.Key()); i >= 0 {
				m.saver.Schedule(row.Key(), m.rows[i])
			}
		}
		m.errMsg = MsgDeleteFailed
		m.reload(reasonDeleteError)
		return
	}

	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.ID == row.ID {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	// A load issued before the delete could still return the row.
	m.invalidateLoads()
	m.r.suppressed.Suppress(context.Background(), row.Date)
	m.lastSeen = m.r.store.NotifyChanged()
	m.ensurePlaceholders()
	m.changed()

	time.AfterFunc(m.r.cfg.DeleteSettleDelay, func() {
		m.post(func() { m.reload(reasonDelete) })
	})
}
