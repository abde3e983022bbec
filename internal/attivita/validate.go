package attivita

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidKM is returned when KM input contains anything but digits and one decimal separator.
	ErrInvalidKM = errors.New("km non valido")
	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("data non valida")
	// ErrInvalidKind is returned for an unknown activity category.
	ErrInvalidKind = errors.New("tipo rimborso non valido")
	// ErrInvalidAllowance is returned when the allowance flag cannot be parsed.
	ErrInvalidAllowance = errors.New("indennità non valida")
	// ErrUnknownField is returned when editing a column that does not exist.
	ErrUnknownField = errors.New("campo sconosciuto")
	// ErrIncompleteRow is returned when an explicit submit finds required fields missing.
	ErrIncompleteRow = errors.New("riga incompleta")
	// ErrNotFound is returned when the server has no activity with the requested ID.
	ErrNotFound = errors.New("attività non trovata")
)

// Names of the required columns, in the order Validate reports them.
const (
	MissingClient = "Cliente"
	MissingKind   = "Rimborso"
	MissingKM     = "KM"
)

// DateLayout is the ISO calendar date layout used for Row.Date.
const DateLayout = "2006-01-02"

// Validation is the outcome of Validate.
type Validation struct {
	IsComplete bool
	Missing    []string
}

// Validate reports whether the required fields of row are filled. A row is complete
// when client and activity kind are non-blank and KM parses to a finite value above zero.
func Validate(row Row) Validation {
	missing := make([]string, 0, 3)
	if strings.TrimSpace(row.ClientName) == "" {
		missing = append(missing, MissingClient)
	}
	if strings.TrimSpace(string(row.ActivityKind)) == "" {
		missing = append(missing, MissingKind)
	}
	if km, ok := ParseKM(row.KM); !ok || km <= 0 {
		missing = append(missing, MissingKM)
	}
	return Validation{IsComplete: len(missing) == 0, Missing: missing}
}

// Require returns ErrIncompleteRow listing the missing columns, or nil.
func Require(row Row) error {
	v := Validate(row)
	if v.IsComplete {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrIncompleteRow, strings.Join(v.Missing, ", "))
}

// ParseKM parses a distance typed with either '.' or ',' as decimal separator.
func ParseKM(value string) (float64, bool) {
	value = strings.TrimSpace(strings.Replace(value, ",", ".", 1))
	if value == "" {
		return 0, false
	}
	km, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(km) || math.IsInf(km, 0) {
		return 0, false
	}
	return km, true
}

// SanitizeKM checks a KM value as typed. Digits and at most one decimal separator are
// accepted; the input is returned unchanged so a trailing separator survives editing.
func SanitizeKM(value string) (string, error) {
	separators := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' || r == ',':
			separators++
			if separators > 1 {
				return "", fmt.Errorf("%w: %q", ErrInvalidKM, value)
			}
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidKM, value)
		}
	}
	return value, nil
}

// FormatKM renders a stored distance for editing, dropping a useless fraction.
func FormatKM(km float64) string {
	if km == 0 {
		return ""
	}
	return strconv.FormatFloat(km, 'f', -1, 64)
}

// ParseDate validates an ISO calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}

// Apply writes value into field and returns the edited row. Invalid input leaves the
// row untouched and returns a validation error.
func (r Row) Apply(field Field, value string) (Row, error) {
	switch field {
	case FieldDate:
		t, err := ParseDate(value)
		if err != nil {
			return r, err
		}
		r.Date = t.Format(DateLayout)
	case FieldClient:
		if value != r.ClientName {
			r.ClientID = nil
		}
		r.ClientName = value
	case FieldKind:
		k, ok := ParseKind(value)
		if !ok {
			return r, fmt.Errorf("%w: %q", ErrInvalidKind, value)
		}
		r.ActivityKind = k
	case FieldKM:
		km, err := SanitizeKM(value)
		if err != nil {
			return r, err
		}
		r.KM = km
	case FieldAllowance:
		b, err := parseFlag(value)
		if err != nil {
			return r, err
		}
		r.Allowance = b
	default:
		return r, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return r, nil
}

func parseFlag(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "si", "sì", "s", "x":
		return true, nil
	case "no", "n", "":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidAllowance, value)
	}
	return b, nil
}
