package dom

import (
	"log/slog"
	"net/url"
)

// Document is the root of a displayed tree plus its document-level state.
type Document struct {
	// URL is the document location. Navigation updates it on commit.
	URL *url.URL

	// Cookie, UserAgent and Referrer are reported to the authority in
	// synthetic navigation headers.
	Cookie    string
	UserAgent string
	Referrer  string

	// History is the session history.
	History *History

	// Logger receives listener panics and observer panics.
	Logger *slog.Logger

	body       *Node
	listeners  map[string][]*listener
	observers  []*observer
	nextID     uint64
	readyFired bool
}

// New creates an empty document at the given location.
func New(u *url.URL) *Document {
	if u == nil {
		u = &url.URL{Path: "/"}
	}
	d := &Document{
		URL:     u,
		History: &History{},
		Logger:  slog.Default(),
	}
	d.body = d.CreateElement("body")
	return d
}

// Body returns the container element that holds the synced tree.
func (d *Document) Body() *Node { return d.body }

// Origin returns the scheme://host of the document URL, or "" when the
// document has no trusted origin.
func (d *Document) Origin() string {
	if d.URL == nil || d.URL.Scheme == "" || d.URL.Host == "" {
		return ""
	}
	return d.URL.Scheme + "://" + d.URL.Host
}

// CreateElement creates a detached element owned by d.
func (d *Document) CreateElement(tag string) *Node {
	return &Node{Kind: KindElement, Tag: tag, doc: d}
}

// CreateText creates a detached text node owned by d.
func (d *Document) CreateText(s string) *Node {
	return &Node{Kind: KindText, text: s, doc: d}
}

// Ready reports whether DOMContentLoaded has been fired at least once.
func (d *Document) Ready() bool { return d.readyFired }

// FireContentLoaded dispatches a DOMContentLoaded event on the document.
func (d *Document) FireContentLoaded() {
	d.readyFired = true
	d.Dispatch(&Event{Type: EventContentLoaded})
}
