package dom

// Entry is one session history entry.
type Entry struct {
	UID  string // Page UID the entry was committed with
	Path string
}

// History is a linear session history with a cursor.
// The zero value is an empty history.
type History struct {
	entries []Entry
	pos     int // 1-based position of the current entry; 0 when empty
}

// Push appends e after the current entry, dropping any forward entries.
// It is a no-op returning false when e equals the current entry.
func (h *History) Push(e Entry) bool {
	if cur, ok := h.Current(); ok && cur == e {
		return false
	}
	h.entries = append(h.entries[:h.pos], e)
	h.pos = len(h.entries)
	return true
}

// Replace overwrites the current entry, or pushes if history is empty.
func (h *History) Replace(e Entry) {
	if h.pos == 0 {
		h.Push(e)
		return
	}
	h.entries[h.pos-1] = e
}

// Current returns the entry under the cursor.
func (h *History) Current() (Entry, bool) {
	if h.pos == 0 {
		return Entry{}, false
	}
	return h.entries[h.pos-1], true
}

// Back moves the cursor back one entry and returns it.
func (h *History) Back() (Entry, bool) {
	if h.pos <= 1 {
		return Entry{}, false
	}
	h.pos--
	return h.entries[h.pos-1], true
}

// Forward moves the cursor forward one entry and returns it.
func (h *History) Forward() (Entry, bool) {
	if h.pos >= len(h.entries) {
		return Entry{}, false
	}
	h.pos++
	return h.entries[h.pos-1], true
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }
