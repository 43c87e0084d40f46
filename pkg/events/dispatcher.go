// Package events turns DOM events on managed nodes into authority commands.
//
// Bindings are derived from reserved properties by the patch engine. Each
// bound handler prevents the default action of submit, aborts with native
// validity feedback when the element is invalid, normalizes the element's
// value and sends a DISPATCH_COMPONENT_EVENT frame.
package events

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/protocol"
)

// Sender delivers an outbound frame to the authority.
type Sender interface {
	Send(f protocol.Frame)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(protocol.Frame)

// Send implements Sender.
func (f SenderFunc) Send(fr protocol.Frame) { f(fr) }

type docKey struct {
	node *dom.Node
	name string
}

// Dispatcher owns every event binding of one session.
// It must only be used from the goroutine that owns the document.
type Dispatcher struct {
	doc     *dom.Document
	sender  Sender
	pageUID func() string
	logger  *slog.Logger

	elements  map[*dom.Node]map[string]dom.ListenerID
	documents map[string]map[docKey]dom.ListenerID // page UID -> bindings
}

// New creates a dispatcher. pageUID returns the current page UID.
func New(doc *dom.Document, sender Sender, pageUID func() string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		doc:       doc,
		sender:    sender,
		pageUID:   pageUID,
		logger:    logger.With("component", "events"),
		elements:  make(map[*dom.Node]map[string]dom.ListenerID),
		documents: make(map[string]map[docKey]dom.ListenerID),
	}
}

// Bind attaches a handler to n for each event name not already bound.
func (d *Dispatcher) Bind(n *dom.Node, names []string) {
	bound := d.elements[n]
	if bound == nil {
		bound = make(map[string]dom.ListenerID)
		d.elements[n] = bound
	}
	for _, name := range names {
		if _, ok := bound[name]; ok {
			continue
		}
		bound[name] = n.AddEventListener(name, d.elementHandler(n, name))
		n.Meta.Events = append(n.Meta.Events, name)
	}
}

// Unbind removes n's handlers for the given names.
func (d *Dispatcher) Unbind(n *dom.Node, names []string) {
	bound := d.elements[n]
	for _, name := range names {
		id, ok := bound[name]
		if !ok {
			continue
		}
		n.RemoveEventListener(name, id)
		delete(bound, name)
		n.Meta.Events = without(n.Meta.Events, name)
	}
	if len(bound) == 0 {
		delete(d.elements, n)
	}
}

// BindDocument attaches document-level handlers owned by n under pageUID.
func (d *Dispatcher) BindDocument(pageUID string, n *dom.Node, names []string) {
	page := d.documents[pageUID]
	if page == nil {
		page = make(map[docKey]dom.ListenerID)
		d.documents[pageUID] = page
	}
	for _, name := range names {
		key := docKey{node: n, name: name}
		if _, ok := page[key]; ok {
			continue
		}
		page[key] = d.doc.AddEventListener(name, d.documentHandler(pageUID, n, name))
		n.Meta.DocumentEvents = append(n.Meta.DocumentEvents, name)
	}
}

// UnbindDocument removes document-level handlers owned by n under pageUID.
func (d *Dispatcher) UnbindDocument(pageUID string, n *dom.Node, names []string) {
	page := d.documents[pageUID]
	for _, name := range names {
		key := docKey{node: n, name: name}
		id, ok := page[key]
		if !ok {
			continue
		}
		d.doc.RemoveEventListener(name, id)
		delete(page, key)
		n.Meta.DocumentEvents = without(n.Meta.DocumentEvents, name)
	}
	if len(page) == 0 {
		delete(d.documents, pageUID)
	}
}

// UnbindAll removes every element and document binding of n.
func (d *Dispatcher) UnbindAll(n *dom.Node) {
	if bound, ok := d.elements[n]; ok {
		names := make([]string, 0, len(bound))
		for name := range bound {
			names = append(names, name)
		}
		d.Unbind(n, names)
	}
	for pageUID, page := range d.documents {
		var names []string
		for key := range page {
			if key.node == n {
				names = append(names, key.name)
			}
		}
		if len(names) > 0 {
			d.UnbindDocument(pageUID, n, names)
		}
	}
}

// UnbindPage removes every document-level handler of a page.
func (d *Dispatcher) UnbindPage(pageUID string) {
	page := d.documents[pageUID]
	for key, id := range page {
		d.doc.RemoveEventListener(key.name, id)
		key.node.Meta.DocumentEvents = without(key.node.Meta.DocumentEvents, key.name)
	}
	delete(d.documents, pageUID)
}

// HandlerCount returns the number of live handlers, element and document.
func (d *Dispatcher) HandlerCount() int {
	n := 0
	for _, bound := range d.elements {
		n += len(bound)
	}
	for _, page := range d.documents {
		n += len(page)
	}
	return n
}

func (d *Dispatcher) elementHandler(n *dom.Node, name string) dom.Handler {
	return func(ev *dom.Event) {
		defer d.recoverHandler(name, n)

		if name == "submit" {
			ev.PreventDefault()
		}
		if !n.ReportValidity() {
			d.logger.Debug("event aborted: element invalid",
				"event", name, "uid", n.Meta.UID, "reason", n.ValidationMessage())
			return
		}
		d.send(&protocol.ComponentEvent{
			PageUID:   d.pageUID(),
			TargetUID: n.Meta.UID,
			Name:      name,
			Value:     Value(n, ev),
		})
	}
}

func (d *Dispatcher) documentHandler(pageUID string, n *dom.Node, name string) dom.Handler {
	return func(ev *dom.Event) {
		defer d.recoverHandler(name, n)

		if pageUID != d.pageUID() {
			d.UnbindDocument(pageUID, n, []string{name})
			return
		}
		if name == "submit" {
			ev.PreventDefault()
		}
		d.send(&protocol.ComponentEvent{
			PageUID:        pageUID,
			TargetUID:      n.Meta.UID,
			Name:           name,
			Value:          normalize(ev.Data),
			DocumentScoped: true,
		})
	}
}

func (d *Dispatcher) send(ev *protocol.ComponentEvent) {
	if d.sender == nil {
		return
	}
	d.sender.Send(ev.Frame())
}

func (d *Dispatcher) recoverHandler(name string, n *dom.Node) {
	if r := recover(); r != nil {
		d.logger.Error("event handler panic",
			"event", name,
			"uid", n.Meta.UID,
			"panic", fmt.Sprint(r),
			"stack", string(debug.Stack()))
	}
}

func without(list []string, s string) []string {
	for i, x := range list {
		if x == s {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}
