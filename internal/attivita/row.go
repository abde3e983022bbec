// Package attivita models the activity/reimbursement rows edited in the activity table.
package attivita

import (
	"strconv"
	"strings"
	"time"
)

// Kind enumerates the reimbursable activity categories. The empty Kind marks a row
// whose category has not been chosen yet.
type Kind string

const (
	KindNone        Kind = ""
	KindSopralluogo Kind = "SOPRALLUOGO"
	KindTrasferta   Kind = "TRASFERTA"
	KindRiunione    Kind = "RIUNIONE"
	KindCantiere    Kind = "CANTIERE"
	KindAltro       Kind = "ALTRO"
)

// Kinds lists the selectable categories in display order.
var Kinds = []Kind{KindSopralluogo, KindTrasferta, KindRiunione, KindCantiere, KindAltro}

// Valid reports whether k is empty or one of the known categories.
func (k Kind) Valid() bool {
	if k == KindNone {
		return true
	}
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseKind maps free text to a Kind, ignoring case and surrounding blanks.
func ParseKind(value string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.TrimSpace(value)))
	return k, k.Valid()
}

const (
	placeholderPrefix = "temp-"
	draftPrefix       = "new-"
)

// Row is the locally editable form of an activity. KM stays textual while the user
// types so partial input such as "12," survives between keystrokes.
type Row struct {
	ID           int64
	TempID       string
	Date         string
	ClientName   string
	ClientID     *int64
	ActivityKind Kind
	KM           string
	Allowance    bool
}

// Record is the server's representation of a persisted activity.
type Record struct {
	ID           int64
	UserID       string
	Date         string
	ClientName   string
	ClientID     *int64
	ActivityKind Kind
	KM           float64
	Allowance    bool
	UpdatedAt    time.Time
}

// Payload carries the writable fields of a create or update call.
type Payload struct {
	UserID       string
	Date         string
	ClientName   string
	ClientID     *int64
	ActivityKind Kind
	KM           float64
	Allowance    bool
	// IdempotencyKey identifies one logical create across retries. Ignored by updates.
	IdempotencyKey string
}

// PlaceholderID returns the synthetic identifier of the placeholder row for date.
func PlaceholderID(date string) string {
	return placeholderPrefix + date
}

// Placeholder builds the UI-only row shown for a date without entries.
func Placeholder(date string) Row {
	return Row{TempID: PlaceholderID(date), Date: date}
}

// Draft builds a manually added row that is created server-side on its first edit.
func Draft(date, token string) Row {
	return Row{TempID: draftPrefix + token, Date: date}
}

// Key identifies the row locally: the decimal server ID once persisted, the
// temporary identifier before.
func (r Row) Key() string {
	if r.ID > 0 {
		return strconv.FormatInt(r.ID, 10)
	}
	return r.TempID
}

// IsTemporary reports whether the row was never created server-side.
func (r Row) IsTemporary() bool {
	return r.ID <= 0
}

// IsPlaceholder reports whether the row is the synthetic entry for an empty date.
func (r Row) IsPlaceholder() bool {
	return r.IsTemporary() && strings.HasPrefix(r.TempID, placeholderPrefix)
}

// Payload converts the row into the write payload. Unparseable KM is sent as zero.
func (r Row) Payload(userID string) Payload {
	km, _ := ParseKM(r.KM)
	return Payload{
		UserID:       userID,
		Date:         r.Date,
		ClientName:   strings.TrimSpace(r.ClientName),
		ClientID:     r.ClientID,
		ActivityKind: r.ActivityKind,
		KM:           km,
		Allowance:    r.Allowance,
	}
}

// Field names a user-editable column.
type Field string

const (
	FieldDate      Field = "data"
	FieldClient    Field = "cliente"
	FieldKind      Field = "rimborso"
	FieldKM        Field = "km"
	FieldAllowance Field = "indennita"
)

// ParseField maps a column name to a Field.
func ParseField(name string) (Field, bool) {
	f := Field(strings.ToLower(strings.TrimSpace(name)))
	switch f {
	case FieldDate, FieldClient, FieldKind, FieldKM, FieldAllowance:
		return f, true
	}
	return "", false
}
