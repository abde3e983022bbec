package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/autocomplete"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/datewindow"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/reconcile"
)

var wednesday = datewindow.Window{Now: func() time.Time {
	return time.Date(2026, 10, 14, 10, 0, 0, 0, time.Local)
}}

func TestRenderViewShowsRowsStateAndTotals(t *testing.T) {
	complete := attivita.Row{ID: 7, Date: "2026-10-14", ClientName: "Acme", ActivityKind: attivita.KindSopralluogo, KM: "12", Allowance: true}
	placeholder := attivita.Placeholder("2026-10-13")
	v := reconcile.View{
		Loaded: true,
		Error:  reconcile.MsgSaveFailed,
		Rows: []reconcile.RowView{
			{Row: complete, Key: complete.Key(), Label: "Oggi", Validation: attivita.Validate(complete)},
			{Row: placeholder, Key: placeholder.Key(), Label: "Ieri", Validation: attivita.Validate(placeholder)},
		},
		Totals:      attivita.Totals{KM: 12, Allowances: 1},
		DataVersion: 3,
	}

	out := renderView(v, wednesday)
	require.Contains(t, out, reconcile.MsgSaveFailed)
	require.Contains(t, out, "Oggi 2026-10-14")
	require.Contains(t, out, "Acme")
	require.Contains(t, out, "da compilare")
	require.Contains(t, out, "temp-2026-10-13")
	require.Contains(t, out, "versione 3")
}

func TestRenderViewWhileFirstLoad(t *testing.T) {
	out := renderView(reconcile.View{Loading: true}, wednesday)
	require.Contains(t, out, "Caricamento")
}

func TestRenderRowsFlagsIncomplete(t *testing.T) {
	rows := []attivita.Row{{ID: 3, Date: "2026-09-30", KM: "5"}}
	out := renderRows(rows, wednesday)
	require.Contains(t, out, "manca:")
	require.Contains(t, out, "1 attività")
}

func TestRenderClients(t *testing.T) {
	require.Contains(t, renderClients(nil), "nessun cliente")
	out := renderClients([]autocomplete.Client{{ID: 4, Name: "Bianchi srl"}})
	require.Contains(t, out, "Bianchi srl")
}
