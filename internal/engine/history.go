package engine

import "sync"

// History is an in-memory browser history. It implements guard.Navigator
// for sessions that have no real browser behind them (the CLI and tests).
type History struct {
	mu       sync.Mutex
	entries  []string
	onChange func(href string)
}

// NewHistory starts a history at start.
func NewHistory(start string) *History {
	if start == "" {
		start = "/"
	}
	return &History{entries: []string{start}}
}

// Push appends href.
func (h *History) Push(href string) {
	h.mu.Lock()
	h.entries = append(h.entries, href)
	h.mu.Unlock()
	h.changed(href)
}

// Replace swaps the current entry for href.
func (h *History) Replace(href string) {
	h.mu.Lock()
	h.entries[len(h.entries)-1] = href
	h.mu.Unlock()
	h.changed(href)
}

// Back drops the current entry. At the first entry it does nothing.
func (h *History) Back() {
	h.mu.Lock()
	if len(h.entries) == 1 {
		h.mu.Unlock()
		return
	}
	h.entries = h.entries[:len(h.entries)-1]
	href := h.entries[len(h.entries)-1]
	h.mu.Unlock()
	h.changed(href)
}

// Current returns the current entry.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1]
}

// Previous returns the entry Back would return to, or "" at the first entry.
func (h *History) Previous() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) < 2 {
		return ""
	}
	return h.entries[len(h.entries)-2]
}

// Entries returns a copy of the stack, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *History) changed(href string) {
	if h.onChange != nil {
		h.onChange(href)
	}
}
