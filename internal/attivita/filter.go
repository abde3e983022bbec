package attivita

// Filter narrows a listing to one user's activities within an inclusive date range.
// Empty bounds are open.
type Filter struct {
	UserID string
	From   string
	To     string
}

// Matches reports whether a row dated date passes the date bounds of f.
func (f Filter) Matches(date string) bool {
	if f.From != "" && date < f.From {
		return false
	}
	if f.To != "" && date > f.To {
		return false
	}
	return true
}
