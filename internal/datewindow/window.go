// Package datewindow computes the rolling working window and the period filters of
// the activity table.
package datewindow

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO calendar date layout.
const Layout = "2006-01-02"

// Day is one entry of the rolling window.
type Day struct {
	Date  string
	Label string
}

// Labels used for the three window entries, newest first.
var Labels = [3]string{"Oggi", "Ieri", "L'altro ieri"}

// Predicate decides whether automatic row creation may happen on a given day.
type Predicate func(time.Time) bool

// Window resolves "today" and the working-day policy. The zero value uses the wall
// clock and treats Monday to Friday as working days.
type Window struct {
	Now        func() time.Time
	WorkingDay Predicate
}

func (w Window) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Clock returns the current time as seen by the window.
func (w Window) Clock() time.Time {
	return w.now()
}

func (w Window) predicate() Predicate {
	if w.WorkingDay != nil {
		return w.WorkingDay
	}
	return Weekdays(time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday)
}

// Today returns the ISO date of the current local day.
func (w Window) Today() string {
	return ISODate(w.now())
}

// CurrentWorkingWindow returns today, yesterday and the day before, in that order.
func (w Window) CurrentWorkingWindow() []Day {
	now := w.now()
	days := make([]Day, 0, len(Labels))
	for i, label := range Labels {
		days = append(days, Day{Date: ISODate(now.AddDate(0, 0, -i)), Label: label})
	}
	return days
}

// Contains reports whether date is one of the window dates.
func (w Window) Contains(date string) bool {
	for _, d := range w.CurrentWorkingWindow() {
		if d.Date == date {
			return true
		}
	}
	return false
}

// IsWorkingDay applies the working-day predicate to an ISO date. Unparseable dates
// are never working days.
func (w Window) IsWorkingDay(date string) bool {
	t, err := time.ParseInLocation(Layout, date, time.Local)
	if err != nil {
		return false
	}
	return w.predicate()(t)
}

// ISODate formats t as YYYY-MM-DD from its own calendar fields, so a late-evening local
// time never rolls over to the next UTC day.
func ISODate(t time.Time) string {
	y, m, d := t.Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// Weekdays returns a predicate accepting the listed weekdays.
func Weekdays(days ...time.Weekday) Predicate {
	var set [7]bool
	for _, d := range days {
		set[d] = true
	}
	return func(t time.Time) bool { return set[t.Weekday()] }
}

// ExceptHolidays wraps base, rejecting the listed ISO dates.
func ExceptHolidays(base Predicate, holidays ...string) Predicate {
	closed := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		if h = strings.TrimSpace(h); h != "" {
			closed[h] = struct{}{}
		}
	}
	return func(t time.Time) bool {
		if _, ok := closed[ISODate(t)]; ok {
			return false
		}
		return base(t)
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "dom": time.Sunday,
	"mon": time.Monday, "lun": time.Monday,
	"tue": time.Tuesday, "mar": time.Tuesday,
	"wed": time.Wednesday, "mer": time.Wednesday,
	"thu": time.Thursday, "gio": time.Thursday,
	"fri": time.Friday, "ven": time.Friday,
	"sat": time.Saturday, "sab": time.Saturday,
}

// ParseWeekdays reads a list such as "mon,tue,wed" (English or Italian abbreviations).
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}
