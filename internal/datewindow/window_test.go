package datewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCurrentWorkingWindow(t *testing.T) {
	w := Window{Now: fixed(time.Date(2026, time.March, 1, 9, 0, 0, 0, time.Local))}

	days := w.CurrentWorkingWindow()
	require.Equal(t, []Day{
		{Date: "2026-03-01", Label: "Oggi"},
		{Date: "2026-02-28", Label: "Ieri"},
		{Date: "2026-02-27", Label: "L'altro ieri"},
	}, days)
	require.True(t, w.Contains("2026-02-27"))
	require.False(t, w.Contains("2026-02-26"))
}

func TestISODateUsesLocalCalendarFields(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	lateEvening := time.Date(2026, time.October, 16, 23, 30, 0, 0, rome)
	require.Equal(t, "2026-10-16", ISODate(lateEvening))
	require.Equal(t, "2026-10-16", ISODate(lateEvening.UTC()))

	justAfterMidnight := time.Date(2026, time.October, 17, 0, 30, 0, 0, rome)
	require.Equal(t, "2026-10-17", ISODate(justAfterMidnight))
	require.Equal(t, "2026-10-16", ISODate(justAfterMidnight.UTC()))
}

func TestDefaultWorkingDaysAreWeekdays(t *testing.T) {
	var w Window
	require.True(t, w.IsWorkingDay("2026-10-16"))  // Friday
	require.False(t, w.IsWorkingDay("2026-10-17")) // Saturday
	require.False(t, w.IsWorkingDay("2026-10-18")) // Sunday
	require.False(t, w.IsWorkingDay("not-a-date"))
}

func TestConfigurableWorkingDays(t *testing.T) {
	days, err := ParseWeekdays([]string{"lun", "Tue", "sabato"})
	require.NoError(t, err)

	w := Window{WorkingDay: ExceptHolidays(Weekdays(days...), "2026-10-13")}
	require.True(t, w.IsWorkingDay("2026-10-12"))
	require.False(t, w.IsWorkingDay("2026-10-13"))
	require.True(t, w.IsWorkingDay("2026-10-17"))
	require.False(t, w.IsWorkingDay("2026-10-16"))

	_, err = ParseWeekdays([]string{"funday"})
	require.Error(t, err)
}

func TestPeriodRanges(t *testing.T) {
	now := time.Date(2026, time.November, 20, 10, 0, 0, 0, time.Local)

	from, to := Period{Kind: PeriodMonth}.Range(now)
	require.Equal(t, "2026-11-01", from)
	require.Equal(t, "2026-11-30", to)

	from, to = Period{Kind: PeriodQuarter}.Range(now)
	require.Equal(t, "2026-10-01", from)
	require.Equal(t, "2026-12-31", to)

	from, to = Period{Kind: PeriodAll}.Range(now)
	require.Empty(t, from)
	require.Empty(t, to)

	custom, err := ParsePeriod("custom", "2026-01-10", "")
	require.NoError(t, err)
	require.True(t, custom.Contains("2026-05-01", now))
	require.False(t, custom.Contains("2026-01-09", now))
}

func TestParsePeriodRejectsInvertedRange(t *testing.T) {
	_, err := ParsePeriod("custom", "2026-02-01", "2026-01-01")
	require.Error(t, err)
	_, err = ParsePeriod("fortnight", "", "")
	require.Error(t, err)

	p, err := ParsePeriod("", "", "")
	require.NoError(t, err)
	require.Equal(t, PeriodAll, p.Kind)
}
