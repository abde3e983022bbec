// Package autocomplete ranks customer names for the client column of the activity table.
package autocomplete

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Client is an entry of the customer registry.
type Client struct {
	ID   int64
	Name string
}

// MatchScore represents the quality of a match.
type MatchScore int

const (
	MatchNone MatchScore = iota
	MatchSubstring
	MatchWordPrefix
	MatchPrefix
	MatchExact
)

// Fold lowercases s, strips accents and collapses separators so "Società  Edile"
// and "societa edile" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
		} else if !space {
			b.WriteRune(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Score compares a folded query against a folded name.
func Score(query, name string) MatchScore {
	switch {
	case query == "" || name == "":
		return MatchNone
	case name == query:
		return MatchExact
	case strings.HasPrefix(name, query):
		return MatchPrefix
	case strings.Contains(" "+name, " "+query):
		return MatchWordPrefix
	case strings.Contains(name, query):
		return MatchSubstring
	}
	return MatchNone
}

// Suggest returns up to limit clients matching query, best first. Ties go to the
// shorter name, then alphabetical order. An empty query lists clients alphabetically.
func Suggest(clients []Client, query string, limit int) []Client {
	q := Fold(query)
	type scored struct {
		client Client
		folded string
		score  MatchScore
	}
	matches := make([]scored, 0, len(clients))
	for _, c := range clients {
		folded := Fold(c.Name)
		score := MatchExact
		if q != "" {
			score = Score(q, folded)
		}
		if score == MatchNone {
			continue
		}
		matches = append(matches, scored{client: c, folded: folded, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if q != "" {
			if a.score != b.score {
				return a.score > b.score
			}
			if len(a.folded) != len(b.folded) {
				return len(a.folded) < len(b.folded)
			}
		}
		return a.folded < b.folded
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Client, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.client)
	}
	return out
}
