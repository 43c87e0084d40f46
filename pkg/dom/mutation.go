package dom

import (
	"fmt"
	"runtime/debug"
)

// MutationType is the kind of a recorded mutation.
type MutationType uint8

const (
	MutationAttributes    MutationType = iota // Attribute or style change
	MutationChildList                         // Children added or removed
	MutationCharacterData                     // Text node data change
)

// String returns the string representation of the MutationType.
func (t MutationType) String() string {
	switch t {
	case MutationAttributes:
		return "attributes"
	case MutationChildList:
		return "childList"
	case MutationCharacterData:
		return "characterData"
	default:
		return "unknown"
	}
}

// Mutation describes one change to a connected node.
type Mutation struct {
	Type    MutationType
	Target  *Node
	Name    string // Attribute name for MutationAttributes
	Added   []*Node
	Removed []*Node
}

// Observer receives mutations synchronously as they happen.
type Observer func(Mutation)

type observer struct {
	fn Observer
}

// Observe registers fn for every mutation of the connected tree.
// The returned function unregisters it.
func (d *Document) Observe(fn Observer) (stop func()) {
	o := &observer{fn: fn}
	d.observers = append(d.observers, o)
	return func() {
		for i, x := range d.observers {
			if x == o {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

func (d *Document) record(m Mutation) {
	for _, o := range d.observers {
		d.safeObserve(o.fn, m)
	}
}

func (d *Document) safeObserve(fn Observer, m Mutation) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Error("mutation observer panic",
				"mutation", m.Type.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn(m)
}
