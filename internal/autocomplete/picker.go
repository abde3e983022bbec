package autocomplete

// Picker holds the state of a suggestion dropdown.
type Picker struct {
	items       []Client
	highlighted int
	offset      int
	open        bool
}

// Open shows items with the first one highlighted. An empty list keeps it closed.
func (p *Picker) Open(items []Client) {
	p.items = append(p.items[:0], items...)
	p.highlighted = 0
	p.offset = 0
	p.open = len(items) > 0
}

// Close hides the dropdown.
func (p *Picker) Close() {
	p.open = false
}

// IsOpen reports whether the dropdown is shown.
func (p *Picker) IsOpen() bool {
	return p.open
}

// Move shifts the highlight by delta, wrapping at both ends.
func (p *Picker) Move(delta int) {
	if !p.open || len(p.items) == 0 {
		return
	}
	n := len(p.items)
	p.highlighted = ((p.highlighted+delta)%n + n) % n
}

// Highlighted returns the highlighted entry.
func (p *Picker) Highlighted() (Client, bool) {
	if !p.open || len(p.items) == 0 {
		return Client{}, false
	}
	return p.items[p.highlighted], true
}

// Accept returns the highlighted entry and closes the dropdown.
func (p *Picker) Accept() (Client, bool) {
	c, ok := p.Highlighted()
	p.Close()
	return c, ok
}

// Visible returns at most n entries scrolled so the highlight stays in view, and the
// index of the highlight within them.
func (p *Picker) Visible(n int) ([]Client, int) {
	if !p.open || n <= 0 {
		return nil, -1
	}
	if p.highlighted < p.offset {
		p.offset = p.highlighted
	}
	if p.highlighted >= p.offset+n {
		p.offset = p.highlighted - n + 1
	}
	end := p.offset + n
	if end > len(p.items) {
		end = len(p.items)
	}
	return p.items[p.offset:end], p.highlighted - p.offset
}
