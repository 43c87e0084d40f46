package dom

import (
	"fmt"
	"runtime/debug"
)

// EventContentLoaded is the name of the document ready event.
const EventContentLoaded = "DOMContentLoaded"

// Modifiers records the modifier keys held during a pointer or key event.
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// Any reports whether any modifier is held.
func (m Modifiers) Any() bool {
	return m.Ctrl || m.Shift || m.Alt || m.Meta
}

// Event is a dispatched event.
type Event struct {
	Type      string
	Target    *Node // nil for events fired on the document itself
	Data      any   // Event detail: key name, input text, etc.
	Button    int
	Modifiers Modifiers

	// CurrentTarget is the node whose listener is running; nil while
	// document listeners run.
	CurrentTarget *Node

	defaultPrevented bool
	stopped          bool
}

// PreventDefault cancels the event's default action.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation stops the event from bubbling further.
func (e *Event) StopPropagation() { e.stopped = true }

// Handler handles an event.
type Handler func(*Event)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn Handler
}

// AddEventListener registers fn for events named name on n.
func (n *Node) AddEventListener(name string, fn Handler) ListenerID {
	if n.listeners == nil {
		n.listeners = make(map[string][]*listener)
	}
	id := n.doc.newListenerID()
	n.listeners[name] = append(n.listeners[name], &listener{id: id, fn: fn})
	return id
}

// RemoveEventListener removes a listener. It reports whether one was found.
func (n *Node) RemoveEventListener(name string, id ListenerID) bool {
	return removeListener(n.listeners, name, id)
}

// ListenerCount returns the number of listeners for name on n.
func (n *Node) ListenerCount(name string) int {
	return len(n.listeners[name])
}

// AddEventListener registers a document-level listener.
func (d *Document) AddEventListener(name string, fn Handler) ListenerID {
	if d.listeners == nil {
		d.listeners = make(map[string][]*listener)
	}
	id := d.newListenerID()
	d.listeners[name] = append(d.listeners[name], &listener{id: id, fn: fn})
	return id
}

// RemoveEventListener removes a document-level listener.
func (d *Document) RemoveEventListener(name string, id ListenerID) bool {
	return removeListener(d.listeners, name, id)
}

// ListenerCount returns the number of document-level listeners for name.
func (d *Document) ListenerCount(name string) int {
	return len(d.listeners[name])
}

// Dispatch fires ev. Events with a Target bubble from the target to the
// root and then reach document listeners. It returns false if a listener
// prevented the default action.
func (d *Document) Dispatch(ev *Event) bool {
	for n := ev.Target; n != nil && !ev.stopped; n = n.parent {
		ev.CurrentTarget = n
		d.invoke(n.listeners[ev.Type], ev)
	}
	ev.CurrentTarget = nil
	if !ev.stopped {
		d.invoke(d.listeners[ev.Type], ev)
	}
	return !ev.defaultPrevented
}

// invoke runs a snapshot of the listeners; handlers may unbind themselves.
func (d *Document) invoke(ls []*listener, ev *Event) {
	if len(ls) == 0 {
		return
	}
	snapshot := append([]*listener(nil), ls...)
	for _, l := range snapshot {
		d.safeCall(l.fn, ev)
	}
}

func (d *Document) safeCall(fn Handler, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error("event listener panic",
				"event", ev.Type,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn(ev)
}

func (d *Document) newListenerID() ListenerID {
	if d == nil {
		return 0
	}
	d.nextID++
	return ListenerID(d.nextID)
}

func removeListener(m map[string][]*listener, name string, id ListenerID) bool {
	ls := m[name]
	for i, l := range ls {
		if l.id == id {
			m[name] = append(ls[:i:i], ls[i+1:]...)
			if len(m[name]) == 0 {
				delete(m, name)
			}
			return true
		}
	}
	return false
}
