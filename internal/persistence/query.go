// Package persistence contains helpers shared by repository implementations and
// their HTTP surface.
package persistence

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
)

// EncodeFilter renders a listing filter as query parameters.
func EncodeFilter(f attivita.Filter) url.Values {
	q := url.Values{}
	q.Set("user_id", f.UserID)
	if f.From != "" {
		q.Set("from", f.From)
	}
	if f.To != "" {
		q.Set("to", f.To)
	}
	return q
}

// DecodeFilter parses query parameters produced by EncodeFilter.
func DecodeFilter(q url.Values) (attivita.Filter, error) {
	f := attivita.Filter{
		UserID: strings.TrimSpace(q.Get("user_id")),
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
	}
	if f.UserID == "" {
		return attivita.Filter{}, fmt.Errorf("missing user_id parameter")
	}
	for _, bound := range []string{f.From, f.To} {
		if bound == "" {
			continue
		}
		if _, err := attivita.ParseDate(bound); err != nil {
			return attivita.Filter{}, err
		}
	}
	if f.From != "" && f.To != "" && f.From > f.To {
		return attivita.Filter{}, fmt.Errorf("from %s is after to %s", f.From, f.To)
	}
	return f, nil
}
