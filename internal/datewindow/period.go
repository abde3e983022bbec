package datewindow

import (
	"fmt"
	"strings"
	"time"
)

// PeriodKind selects how the expanded view filters rows.
type PeriodKind string

const (
	PeriodAll     PeriodKind = "all"
	PeriodMonth   PeriodKind = "month"
	PeriodQuarter PeriodKind = "quarter"
	PeriodCustom  PeriodKind = "custom"
)

// Period is the expanded-view filter. From and To are inclusive ISO dates and are only
// read for PeriodCustom; either may be empty for an open bound.
type Period struct {
	Kind PeriodKind
	From string
	To   string
}

// ParsePeriod reads "all", "month", "quarter" or "custom" with its bounds.
func ParsePeriod(kind, from, to string) (Period, error) {
	p := Period{Kind: PeriodKind(strings.ToLower(strings.TrimSpace(kind)))}
	switch p.Kind {
	case "":
		p.Kind = PeriodAll
	case PeriodAll, PeriodMonth, PeriodQuarter:
	case PeriodCustom:
		for _, bound := range []string{from, to} {
			if bound == "" {
				continue
			}
			if _, err := time.ParseInLocation(Layout, bound, time.Local); err != nil {
				return Period{}, fmt.Errorf("invalid period bound %q", bound)
			}
		}
		if from != "" && to != "" && from > to {
			return Period{}, fmt.Errorf("period start %s after end %s", from, to)
		}
		p.From, p.To = from, to
	default:
		return Period{}, fmt.Errorf("unknown period %q", kind)
	}
	return p, nil
}

// Range resolves the inclusive ISO bounds of p relative to now. Empty strings mean
// the bound is open.
func (p Period) Range(now time.Time) (from, to string) {
	y, m, _ := now.Date()
	loc := now.Location()
	switch p.Kind {
	case PeriodMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return ISODate(start), ISODate(start.AddDate(0, 1, -1))
	case PeriodQuarter:
		first := time.Month((int(m)-1)/3*3 + 1)
		start := time.Date(y, first, 1, 0, 0, 0, 0, loc)
		return ISODate(start), ISODate(start.AddDate(0, 3, -1))
	case PeriodCustom:
		return p.From, p.To
	}
	return "", ""
}

// Contains reports whether the ISO date falls inside p relative to now.
func (p Period) Contains(date string, now time.Time) bool {
	from, to := p.Range(now)
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}
