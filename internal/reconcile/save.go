package reconcile

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
)

func (m *mount) updateField(key string, field attivita.Field, value string) error {
	i := m.indexOf(key)
	if i < 0 || m.isHidden(m.rows[i]) {
		return ErrRowNotFound
	}
	edited, err := m.rows[i].Apply(field, value)
	if err != nil {
		return err
	}
	m.edit(i, edited)
	return nil
}

func (m *mount) selectClient(key string, clientID int64, name string) error {
	i := m.indexOf(key)
	if i < 0 || m.isHidden(m.rows[i]) {
		return ErrRowNotFound
	}
	edited := m.rows[i]
	edited.ClientName = name
	id := clientID
	edited.ClientID = &id
	m.edit(i, edited)
	return nil
}

// edit stores the new row locally at once and (re)starts its debounce timer.
func (m *mount) edit(i int, row attivita.Row) {
	m.rows[i] = row
	m.saver.Schedule(row.Key(), row)
	m.changed()
}

func (m *mount) addRow(date string) string {
	row := attivita.Draft(date, uuid.NewString())
	m.rows = append(m.rows, row)
	m.ensurePlaceholders()
	m.changed()
	return row.Key()
}

func (m *mount) submit(key string) error {
	i := m.indexOf(key)
	if i < 0 || m.isHidden(m.rows[i]) {
		return ErrRowNotFound
	}
	row := m.rows[i]
	if err := attivita.Require(row); err != nil {
		return err
	}
	m.saver.Cancel(row.Key())
	m.flushRow(row.Key(), row)
	return nil
}

// flushRow issues the save for key. A save already in flight for the same key pushes
// this one back by another debounce period.
func (m *mount) flushRow(key string, scheduled attivita.Row) {
	if m.saving[key] {
		m.saver.Schedule(key, scheduled)
		return
	}
	i := m.indexOf(key)
	if i < 0 {
		return
	}
	row := m.rows[i]
	if m.isHidden(row) {
		return
	}
	key = row.Key()
	payload := row.Payload(m.r.cfg.UserID)
	m.saving[key] = true
	m.changed()

	if row.IsTemporary() {
		payload.IdempotencyKey = m.createKey(key)
		m.async(func(ctx context.Context) func() {
			rec, err := m.r.api.CreateActivity(ctx, payload)
			return func() { m.onCreated(key, rec, err) }
		})
		return
	}
	id := row.ID
	m.async(func(ctx context.Context) func() {
		_, err := m.r.api.UpdateActivity(ctx, id, payload)
		return func() { m.onUpdated(key, err) }
	})
}

func (m *mount) onUpdated(key string, err error) {
	delete(m.saving, key)
	observability.RecordSave("update", err)
	if err != nil {
		m.r.logger.Error("failed to save activity", "row", key, "err", err)
		m.errMsg = MsgSaveFailed
		m.changed()
		return
	}
	m.r.store.NotifyChanged()
	m.changed()
}

func (m *mount) onCreated(tempKey string, rec attivita.Record, err error) {
	delete(m.saving, tempKey)
	observability.RecordSave("create", err)
	if err != nil {
		m.r.logger.Error("failed to create activity", "row", tempKey, "err", err)
		m.errMsg = MsgSaveFailed
		m.changed()
		return
	}
	delete(m.createKeys, tempKey)
	if m.discarded[tempKey] {
		delete(m.discarded, tempKey)
		m.removeCreated(rec)
		return
	}
	m.adopt(tempKey, rec)
	m.r.store.NotifyChanged()
	m.changed()
}

// adopt turns the temporary row tempKey into the persisted row rec. Local fields win
// over the server copy because the user may have kept typing during the create.
func (m *mount) adopt(tempKey string, rec attivita.Record) {
	newKey := strconv.FormatInt(rec.ID, 10)
	m.aliases[tempKey] = newKey

	i := m.temporaryIndex(tempKey)
	if i < 0 {
		if m.indexOf(newKey) < 0 {
			m.rows = append(m.rows, attivita.Normalize(rec))
		}
		m.ensurePlaceholders()
		return
	}
	m.rows[i].ID = rec.ID
	m.rows[i].TempID = ""
	adopted := m.rows[i]

	kept := m.rows[:0]
	for j, row := range m.rows {
		if j != i && row.ID == rec.ID {
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept

	if m.saver.Cancel(tempKey) {
		m.saver.Schedule(newKey, adopted)
	}
	m.ensurePlaceholders()
}

func (m *mount) temporaryIndex(tempKey string) int {
	for i, row := range m.rows {
		if row.IsTemporary() && row.TempID == tempKey {
			return i
		}
	}
	return -1
}

// removeCreated deletes a row whose create finished after the user discarded it.
func (m *mount) removeCreated(rec attivita.Record) {
	m.deleting++
	id := rec.ID
	m.async(func(ctx context.Context) func() {
		err := m.r.api.DeleteActivity(ctx, id)
		return func() {
			m.deleting--
			if err != nil && !errors.Is(err, attivita.ErrNotFound) {
				m.r.logger.Error("failed to remove discarded activity", "id", id, "err", err)
				m.errMsg = MsgDeleteFailed
				m.changed()
				return
			}
			m.r.store.NotifyChanged()
		}
	})
}
