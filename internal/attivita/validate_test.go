package attivita

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateCompleteRow(t *testing.T) {
	v := Validate(Row{ClientName: "Acme", ActivityKind: KindSopralluogo, KM: "12"})
	require.True(t, v.IsComplete)
	require.Empty(t, v.Missing)
}

func TestValidateReportsMissingInFixedOrder(t *testing.T) {
	v := Validate(Row{ClientName: "", ActivityKind: "", KM: ""})
	require.False(t, v.IsComplete)
	require.Equal(t, []string{"Cliente", "Rimborso", "KM"}, v.Missing)

	v = Validate(Row{ClientName: "  ", ActivityKind: KindTrasferta, KM: "0"})
	require.Equal(t, []string{"Cliente", "KM"}, v.Missing)
}

func TestValidateZeroValueDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() { Validate(Row{}) })
	require.Len(t, Validate(Row{}).Missing, 3)
}

func TestParseKM(t *testing.T) {
	km, ok := ParseKM("12,5")
	require.True(t, ok)
	require.InDelta(t, 12.5, km, 1e-9)

	km, ok = ParseKM("7.25")
	require.True(t, ok)
	require.InDelta(t, 7.25, km, 1e-9)

	_, ok = ParseKM("12.5.3")
	require.False(t, ok)
	_, ok = ParseKM("")
	require.False(t, ok)
	_, ok = ParseKM("Inf")
	require.False(t, ok)
}

func TestKMMustBePositive(t *testing.T) {
	for _, km := range []string{"0", "-1", "0,0"} {
		v := Validate(Row{ClientName: "Acme", ActivityKind: KindAltro, KM: km})
		require.Falsef(t, v.IsComplete, "km %q should be invalid", km)
		require.Equal(t, []string{MissingKM}, v.Missing)
	}
}

func TestSanitizeKM(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"12", false},
		{"12,", false},
		{"12,5", false},
		{"12.5", false},
		{"", false},
		{"12.5.3", true},
		{"12,5.", true},
		{"-1", true},
		{"1e3", true},
		{"12 km", true},
	}
	for _, tc := range cases {
		got, err := SanitizeKM(tc.in)
		if tc.wantErr {
			require.ErrorIsf(t, err, ErrInvalidKM, "input %q", tc.in)
			continue
		}
		require.NoErrorf(t, err, "input %q", tc.in)
		require.Equal(t, tc.in, got)
	}
}

func TestApplyRejectsInvalidInputWithoutChangingRow(t *testing.T) {
	row := Row{ID: 4, Date: "2026-10-16", KM: "12"}

	edited, err := row.Apply(FieldKM, "12.5.3")
	require.ErrorIs(t, err, ErrInvalidKM)
	require.Equal(t, row, edited)

	_, err = row.Apply(FieldDate, "16/10/2026")
	require.ErrorIs(t, err, ErrInvalidDate)

	_, err = row.Apply(FieldKind, "vacanza")
	require.ErrorIs(t, err, ErrInvalidKind)

	edited, err = row.Apply(FieldKind, "trasferta")
	require.NoError(t, err)
	require.Equal(t, KindTrasferta, edited.ActivityKind)
}

func TestApplyClientTextDropsResolvedID(t *testing.T) {
	id := int64(9)
	row := Row{ClientName: "Acme", ClientID: &id}

	edited, err := row.Apply(FieldClient, "Acme Spa")
	require.NoError(t, err)
	require.Nil(t, edited.ClientID)

	edited, err = row.Apply(FieldClient, "Acme")
	require.NoError(t, err)
	require.Equal(t, &id, edited.ClientID)
}

func TestDedupeNeverYieldsDuplicateIDs(t *testing.T) {
	rows := NormalizeAll([]Record{
		{ID: 1, Date: "2026-10-16", ClientName: "A"},
		{ID: 2, Date: "2026-10-16"},
		{ID: 1, Date: "2026-10-15", ClientName: "B"},
		{ID: 3, Date: "2026-10-14T00:00:00Z"},
		{ID: 2, Date: "2026-10-16"},
	})
	require.Len(t, rows, 3)

	seen := map[int64]bool{}
	for _, row := range rows {
		require.False(t, seen[row.ID], "duplicate id %d", row.ID)
		seen[row.ID] = true
	}
	require.Equal(t, "A", rows[0].ClientName)
	require.Equal(t, "2026-10-14", rows[2].Date)
}

func TestSortPutsTemporaryRowsLastWithinDate(t *testing.T) {
	rows := []Row{
		Placeholder("2026-10-16"),
		{ID: 8, Date: "2026-10-15"},
		{ID: 5, Date: "2026-10-16"},
		{ID: 2, Date: "2026-10-16"},
	}
	Sort(rows)
	require.Equal(t, []string{"2", "5", "temp-2026-10-16", "8"}, []string{rows[0].Key(), rows[1].Key(), rows[2].Key(), rows[3].Key()})
}

func TestSummarizeSkipsPlaceholders(t *testing.T) {
	totals := Summarize([]Row{
		{ID: 1, ClientName: "A", ActivityKind: KindSopralluogo, KM: "10,5", Allowance: true},
		{ID: 2, ClientName: "B", KM: "4"},
		Placeholder("2026-10-16"),
	})
	require.InDelta(t, 14.5, totals.KM, 1e-9)
	require.Equal(t, 1, totals.Allowances)
	require.Equal(t, 1, totals.Incomplete)
}
