package dom

import "strings"

// Reserved property names carried on the wire. They drive Meta and are
// never treated as ordinary attributes by the event layer.
const (
	// PropUID carries the node's UID. It is surfaced as an attribute.
	PropUID = "data-ls-uid"

	// PropEvents lists element event names to bind, comma separated.
	PropEvents = "data-ls-events"

	// PropDocumentEvents lists document event names to bind.
	PropDocumentEvents = "data-ls-document-events"
)

// Meta is the typed side-channel of reserved engine metadata.
type Meta struct {
	UID            string
	Events         []string // Bound element events, in bind order
	DocumentEvents []string // Bound document events, in bind order
}

// IsReserved reports whether a property name is an event binding list.
// The UID property is not included: it is a real attribute.
func IsReserved(name string) bool {
	return name == PropEvents || name == PropDocumentEvents
}

// SplitEvents parses a comma-separated event list, trimming blanks and
// dropping duplicates while keeping first-seen order.
func SplitEvents(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Diff returns the names in next but not in prev (added) and in prev but
// not in next (removed).
func Diff(prev, next []string) (added, removed []string) {
	in := func(list []string, s string) bool {
		for _, x := range list {
			if x == s {
				return true
			}
		}
		return false
	}
	for _, s := range next {
		if !in(prev, s) {
			added = append(added, s)
		}
	}
	for _, s := range prev {
		if !in(next, s) {
			removed = append(removed, s)
		}
	}
	return added, removed
}
