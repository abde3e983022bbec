package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/autocomplete"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/datewindow"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/reconcile"
)

var (
	headerStyle      = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
	incompleteStyle  = cellStyle.Foreground(lipgloss.Color("203"))
	placeholderStyle = cellStyle.Foreground(lipgloss.Color("244"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

var columns = []string{"Chiave", "Giorno", "Cliente", "Rimborso", "KM", "Indennità", "Stato"}

type line struct {
	cells []string
	style lipgloss.Style
}

func newTable(lines []line) *table.Table {
	rows := make([][]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, l.cells)
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(lines) {
				return lines[row].style
			}
			return cellStyle
		})
}

func dayLabel(date, label string) string {
	if label == "" {
		return date
	}
	return label + " " + date
}

func allowance(v bool) string {
	if v {
		return "sì"
	}
	return "no"
}

func status(row attivita.Row, v attivita.Validation, dirty, saving bool) (string, lipgloss.Style) {
	switch {
	case saving:
		return "salvataggio…", cellStyle
	case dirty:
		return "modificata", cellStyle
	case row.IsPlaceholder():
		return "da compilare", placeholderStyle
	case !v.IsComplete:
		return "manca: " + strings.Join(v.Missing, ", "), incompleteStyle
	}
	return "ok", cellStyle
}

// renderView prints a reconciler snapshot: error banner, table and totals.
func renderView(v reconcile.View, w datewindow.Window) string {
	var b strings.Builder
	if v.Error != "" {
		b.WriteString(errorStyle.Render(v.Error))
		b.WriteByte('\n')
	}
	if v.Loading && !v.Loaded {
		b.WriteString(mutedStyle.Render("Caricamento…"))
		return b.String()
	}

	lines := make([]line, 0, len(v.Rows))
	for _, r := range v.Rows {
		state, style := status(r.Row, r.Validation, r.Dirty, r.Saving)
		lines = append(lines, line{
			cells: []string{r.Key, dayLabel(r.Date, r.Label), r.ClientName, string(r.ActivityKind), r.KM, allowance(r.Allowance), state},
			style: style,
		})
	}
	b.WriteString(newTable(lines).String())
	b.WriteByte('\n')

	scope := "ultimi giorni lavorativi"
	if v.Expanded {
		from, to := v.Period.Range(w.Clock())
		scope = fmt.Sprintf("periodo %s %s..%s", v.Period.Kind, from, to)
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s · km %s · indennità %d · incomplete %d · versione %d",
		scope, attivita.FormatKM(v.Totals.KM), v.Totals.Allowances, v.Totals.Incomplete, v.DataVersion)))
	return b.String()
}

// renderRows prints stored rows without reconciler state.
func renderRows(rows []attivita.Row, w datewindow.Window) string {
	labels := make(map[string]string)
	for _, d := range w.CurrentWorkingWindow() {
		labels[d.Date] = d.Label
	}
	lines := make([]line, 0, len(rows))
	for _, r := range rows {
		state, style := status(r, attivita.Validate(r), false, false)
		lines = append(lines, line{
			cells: []string{r.Key(), dayLabel(r.Date, labels[r.Date]), r.ClientName, string(r.ActivityKind), r.KM, allowance(r.Allowance), state},
			style: style,
		})
	}
	totals := attivita.Summarize(rows)
	return newTable(lines).String() + "\n" + mutedStyle.Render(fmt.Sprintf("%d attività · km %s · indennità %d",
		len(rows), attivita.FormatKM(totals.KM), totals.Allowances))
}

func renderClients(clients []autocomplete.Client) string {
	if len(clients) == 0 {
		return mutedStyle.Render("nessun cliente")
	}
	rows := make([][]string, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, []string{fmt.Sprint(c.ID), c.Name})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "Cliente").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
