package reconcile

import (
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/datewindow"
)

// RowView is a row as displayed.
type RowView struct {
	attivita.Row
	Key        string
	Label      string
	Dirty      bool
	Saving     bool
	Validation attivita.Validation
}

// View is a snapshot of what the table shows.
type View struct {
	Rows        []RowView
	Window      []datewindow.Day
	Expanded    bool
	Period      datewindow.Period
	Loading     bool
	Loaded      bool
	Busy        bool
	Error       string
	DataVersion uint64
	Suppressed  []string
	Totals      attivita.Totals
}

// view selects the visible rows. The default view holds the window dates plus every
// incomplete row; the expanded view holds the rows inside the chosen period.
func (m *mount) view() View {
	window := m.r.window.CurrentWorkingWindow()
	labels := make(map[string]string, len(window))
	for _, d := range window {
		labels[d.Date] = d.Label
	}
	now := m.now()

	v := View{
		Window:      window,
		Expanded:    m.expanded,
		Period:      m.period,
		Loading:     m.loading,
		Loaded:      m.loaded,
		Busy:        m.busy(),
		Error:       m.errMsg,
		DataVersion: m.lastSeen,
		Suppressed:  m.r.suppressed.Dates(),
	}
	shown := make([]attivita.Row, 0, len(m.rows))
	for _, row := range m.rows {
		if m.isHidden(row) {
			continue
		}
		validation := attivita.Validate(row)
		_, inWindow := labels[row.Date]
		if m.expanded {
			if !m.period.Contains(row.Date, now) {
				continue
			}
		} else if !inWindow && (row.IsPlaceholder() || validation.IsComplete) {
			continue
		}
		key := row.Key()
		shown = append(shown, row)
		v.Rows = append(v.Rows, RowView{
			Row:        row,
			Key:        key,
			Label:      labels[row.Date],
			Dirty:      m.saver.Pending(key),
			Saving:     m.saving[key],
			Validation: validation,
		})
	}
	v.Totals = attivita.Summarize(shown)
	return v
}
