// Package registry maps authority-assigned UIDs to displayed nodes.
//
// The registry has one entry per live UID. A UID is registered when a patch
// first introduces its node and unregistered when the node is removed or
// replaced, or when the whole tree is torn down on navigation.
package registry

import (
	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/pkg/dom"
)

var (
	// ErrCollision matches Register on an already registered UID.
	ErrCollision = errors.New(errors.CodeCollision)

	// ErrUnknownUID matches operations on a UID that is not registered.
	ErrUnknownUID = errors.New(errors.CodeUnknownUID)
)

// Registry maps UIDs to nodes. It is not safe for concurrent use; the
// session event loop owns it.
type Registry struct {
	nodes map[string]*dom.Node
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{nodes: make(map[string]*dom.Node)}
}

// Register binds uid to n. It fails if uid is already bound.
func (r *Registry) Register(uid string, n *dom.Node) error {
	if _, exists := r.nodes[uid]; exists {
		return errors.New(errors.CodeCollision).
			WithDetailf("UID %q is still bound to a live node", uid).
			With("uid", uid)
	}
	r.nodes[uid] = n
	n.Meta.UID = uid
	return nil
}

// Unregister removes uid. Unregistering an unknown UID is a no-op.
func (r *Registry) Unregister(uid string) {
	delete(r.nodes, uid)
}

// Get returns the node bound to uid.
func (r *Registry) Get(uid string) (*dom.Node, bool) {
	n, ok := r.nodes[uid]
	return n, ok
}

// Has reports whether uid is registered.
func (r *Registry) Has(uid string) bool {
	_, ok := r.nodes[uid]
	return ok
}

// Relocate moves the entry for from to to in one step. Relocating onto the
// same UID is a no-op; relocating onto a bound UID is a collision.
func (r *Registry) Relocate(from, to string) error {
	if from == to {
		return nil
	}
	n, ok := r.nodes[from]
	if !ok {
		return errors.New(errors.CodeUnknownUID).
			WithDetailf("cannot relocate %q: not registered", from).
			With("uid", from)
	}
	if _, exists := r.nodes[to]; exists {
		return errors.New(errors.CodeCollision).
			WithDetailf("cannot relocate %q onto %q: target is still bound", from, to).
			With("uid", to)
	}
	delete(r.nodes, from)
	r.nodes[to] = n
	n.Meta.UID = to
	return nil
}

// UnregisterTree unregisters n and every descendant that carries a UID.
func (r *Registry) UnregisterTree(n *dom.Node) {
	n.Walk(func(c *dom.Node) bool {
		if c.Meta.UID != "" && r.nodes[c.Meta.UID] == c {
			delete(r.nodes, c.Meta.UID)
		}
		return true
	})
}

// Len returns the number of registered UIDs.
func (r *Registry) Len() int { return len(r.nodes) }

// Reset drops every entry.
func (r *Registry) Reset() {
	r.nodes = make(map[string]*dom.Node)
}

// UIDs returns the registered UIDs in no particular order.
func (r *Registry) UIDs() []string {
	out := make([]string, 0, len(r.nodes))
	for uid := range r.nodes {
		out = append(out, uid)
	}
	return out
}
