package attivita

import (
	"sort"
	"strings"
)

// Normalize converts a server record into its editable row form.
func Normalize(rec Record) Row {
	date := strings.TrimSpace(rec.Date)
	if len(date) > len(DateLayout) {
		date = date[:len(DateLayout)]
	}
	kind, ok := ParseKind(string(rec.ActivityKind))
	if !ok {
		kind = KindAltro
	}
	return Row{
		ID:           rec.ID,
		Date:         date,
		ClientName:   rec.ClientName,
		ClientID:     rec.ClientID,
		ActivityKind: kind,
		KM:           FormatKM(rec.KM),
		Allowance:    rec.Allowance,
	}
}

// NormalizeAll normalises records and removes duplicate IDs.
func NormalizeAll(records []Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Normalize(rec))
	}
	return Dedupe(rows)
}

// Dedupe keeps the first occurrence of every row key, preserving order.
func Dedupe(rows []Row) []Row {
	seen := make(map[string]struct{}, len(rows))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		key := row.Key()
		if key == "" {
			out = append(out, row)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// Sort orders rows newest date first; within a date persisted rows come first by ID
// and temporary rows last.
func Sort(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		if a.IsTemporary() != b.IsTemporary() {
			return !a.IsTemporary()
		}
		if !a.IsTemporary() {
			return a.ID < b.ID
		}
		return a.TempID < b.TempID
	})
}

// Totals summarises the reimbursable distance and allowances of rows.
type Totals struct {
	KM         float64
	Allowances int
	Incomplete int
}

// Summarize computes Totals over rows, skipping placeholders.
func Summarize(rows []Row) Totals {
	var t Totals
	for _, row := range rows {
		if row.IsPlaceholder() {
			continue
		}
		if km, ok := ParseKM(row.KM); ok && km > 0 {
			t.KM += km
		}
		if row.Allowance {
			t.Allowances++
		}
		if !Validate(row).IsComplete {
			t.Incomplete++
		}
	}
	return t
}
