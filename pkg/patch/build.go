package patch

import (
	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/protocol"
)

// builder constructs a subtree off-tree, registering UIDs as it goes so a
// failed build can be rolled back.
type builder struct {
	e *Engine

	// replacing is the subtree being replaced, if any. Its descendants'
	// UIDs may be reused by the new subtree.
	replacing *dom.Node

	registered []binding
	built      []*dom.Node
}

type binding struct {
	uid  string
	prev *dom.Node // Entry displaced from the replaced subtree
}

func (e *Engine) newBuilder(replacing *dom.Node) *builder {
	return &builder{e: e, replacing: replacing}
}

// build creates the node for w. When registerRoot is false the root's UID
// is left for the caller to register.
func (b *builder) build(w *protocol.NodeWire, registerRoot bool) (*dom.Node, error) {
	doc := b.e.doc
	if w.IsText() {
		return doc.CreateText(w.Text), nil
	}

	n := doc.CreateElement(w.Tag)
	uid := w.UID
	if uid == "" {
		uid = w.Props[dom.PropUID]
	}
	if uid != "" {
		if registerRoot {
			if err := b.register(uid, n); err != nil {
				return nil, err
			}
		} else {
			n.Meta.UID = uid
		}
		if _, ok := w.Props[dom.PropUID]; !ok {
			n.SetAttr(dom.PropUID, uid)
		}
	}

	for k, v := range w.Props {
		if !dom.IsReserved(k) {
			n.SetAttr(k, v)
		}
	}
	n.CachedProps = copyMap(w.Props)
	for k, v := range w.Style {
		n.SetStyleProp(k, v)
	}
	n.CachedStyle = copyMap(w.Style)

	if w.Text != "" {
		n.AppendChild(doc.CreateText(w.Text))
	}
	for _, cw := range w.Children {
		if cw == nil {
			continue
		}
		c, err := b.build(cw, true)
		if err != nil {
			return nil, err
		}
		n.AppendChild(c)
	}

	if registerRoot {
		b.e.bindNode(n)
		b.built = append(b.built, n)
	}
	return n, nil
}

// register binds uid to n. A UID still held by a node inside the subtree
// being replaced is taken over; any other live UID is a collision.
func (b *builder) register(uid string, n *dom.Node) error {
	reg := b.e.reg
	if cur, ok := reg.Get(uid); ok && b.within(cur) {
		reg.Unregister(uid)
		if err := reg.Register(uid, n); err != nil {
			return err
		}
		b.registered = append(b.registered, binding{uid: uid, prev: cur})
		return nil
	}
	if err := reg.Register(uid, n); err != nil {
		return err
	}
	b.registered = append(b.registered, binding{uid: uid})
	return nil
}

func (b *builder) within(n *dom.Node) bool {
	if b.replacing == nil {
		return false
	}
	for p := n; p != nil; p = p.Parent() {
		if p == b.replacing {
			return true
		}
	}
	return false
}

// rollback undoes every registration and binding made by the build.
func (b *builder) rollback() {
	if b.e.binder != nil {
		for _, n := range b.built {
			b.e.binder.UnbindAll(n)
		}
	}
	reg := b.e.reg
	for i := len(b.registered) - 1; i >= 0; i-- {
		r := b.registered[i]
		reg.Unregister(r.uid)
		if r.prev != nil {
			_ = reg.Register(r.uid, r.prev)
		}
	}
}
