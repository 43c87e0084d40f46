package patch

import (
	"fmt"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/protocol"
)

// apply performs one patch instruction.
func (e *Engine) apply(p protocol.Patch) error {
	target, ok := e.reg.Get(p.UID)
	if !ok {
		e.logger.Debug("patch target not registered",
			"op", p.Op.String(), "uid", p.UID, "code", errors.CodeUnknownUID)
		return nil
	}

	switch p.Op {
	case protocol.PatchInsertNode:
		return e.insertNode(target, p.Index, p.Node)
	case protocol.PatchReplaceNode:
		return e.replaceNode(p.UID, target, p.Node)
	case protocol.PatchRemoveNode:
		e.removeNode(target)
		return nil
	case protocol.PatchAlterText:
		return e.alterText(target, p.Text, p.Markup)
	case protocol.PatchReplaceProps:
		return e.replaceProps(target, p.Props)
	case protocol.PatchReplaceStyle:
		e.replaceStyle(target, p.Props)
		return nil
	default:
		e.logger.Warn("unknown patch op skipped", "op", int(p.Op), "uid", p.UID)
		return nil
	}
}

// insertNode builds the subtree off-tree and splices it into parent.
// An index past the end appends.
func (e *Engine) insertNode(parent *dom.Node, index int, w *protocol.NodeWire) error {
	b := e.newBuilder(nil)
	n, err := b.build(w, true)
	if err != nil {
		b.rollback()
		return err
	}
	parent.InsertChild(index, n)
	return nil
}

// replaceNode swaps old for a freshly built subtree carrying the same UID.
func (e *Engine) replaceNode(uid string, old *dom.Node, w *protocol.NodeWire) error {
	b := e.newBuilder(old)
	n, err := b.build(w, false)
	if err != nil {
		b.rollback()
		return err
	}

	e.unbindTree(old)
	parent := old.Parent()
	if parent == nil {
		e.adopt(old, n)
		return nil
	}
	parent.ReplaceChild(n, old)
	e.reg.UnregisterTree(old)
	e.reg.Unregister(uid)
	if err := e.reg.Register(uid, n); err != nil {
		return err
	}
	e.bindNode(n)
	return nil
}

// adopt moves the content of the built node n into old, which stays in
// place under its registration. Used for nodes with no parent to swap into,
// such as the mounted body. The tag of old is kept.
func (e *Engine) adopt(old, n *dom.Node) {
	if n.Kind == dom.KindElement && n.Tag != old.Tag {
		e.logger.Debug("replacement tag ignored for detached root",
			"uid", old.Meta.UID, "tag", old.Tag, "replacement", n.Tag)
	}
	for _, c := range old.Children() {
		e.reg.UnregisterTree(c)
	}

	if n.Kind != dom.KindElement {
		e.clearProps(old)
		old.ReplaceChildren(n)
		return
	}

	e.clearProps(old)
	for _, name := range n.AttrNames() {
		if name == dom.PropUID {
			continue
		}
		if v, ok := n.Attr(name); ok {
			old.SetAttr(name, v)
		}
	}
	for k, v := range n.CachedStyle {
		old.SetStyleProp(k, v)
	}
	old.CachedProps = n.CachedProps
	old.CachedStyle = n.CachedStyle

	kids := append([]*dom.Node(nil), n.Children()...)
	old.ReplaceChildren(kids...)
	e.bindNode(old)
}

// clearProps removes what the engine last wrote to n, keeping its UID.
func (e *Engine) clearProps(n *dom.Node) {
	for k := range n.CachedProps {
		if k != dom.PropUID && !dom.IsReserved(k) {
			n.RemoveAttr(k)
		}
	}
	for k := range n.CachedStyle {
		n.RemoveStyleProp(k)
	}
	n.CachedProps = nil
	n.CachedStyle = nil
}

// removeNode detaches n, unbinds its subtree and unregisters it.
func (e *Engine) removeNode(n *dom.Node) {
	n.Remove()
	e.teardown(n)
}

// alterText replaces the content of n with literal text or parsed markup.
func (e *Engine) alterText(n *dom.Node, text string, markup bool) error {
	if n.Kind == dom.KindText {
		n.SetData(text)
		return nil
	}
	if !markup {
		e.teardownChildren(n)
		n.SetTextContent(text)
		return nil
	}
	nodes, err := e.doc.ParseFragment(text)
	if err != nil {
		return fmt.Errorf("parse markup: %w", err)
	}
	e.teardownChildren(n)
	n.ReplaceChildren(nodes...)
	return nil
}

// replaceProps diffs props against the cached set. A changed UID property
// relocates the registry entry before anything else is touched.
func (e *Engine) replaceProps(n *dom.Node, props map[string]string) error {
	if newUID, ok := props[dom.PropUID]; ok && newUID != "" && newUID != n.Meta.UID {
		if err := e.reg.Relocate(n.Meta.UID, newUID); err != nil {
			return err
		}
	}

	e.syncEvents(n, props)

	for k := range n.CachedProps {
		if _, keep := props[k]; !keep && !dom.IsReserved(k) {
			n.RemoveAttr(k)
		}
	}
	for k, v := range props {
		if dom.IsReserved(k) {
			continue
		}
		n.SetAttr(k, v)
	}
	n.CachedProps = copyMap(props)
	return nil
}

// replaceStyle diffs style against the cached style set.
func (e *Engine) replaceStyle(n *dom.Node, style map[string]string) {
	for k := range n.CachedStyle {
		if _, keep := style[k]; !keep {
			n.RemoveStyleProp(k)
		}
	}
	for k, v := range style {
		n.SetStyleProp(k, v)
	}
	n.CachedStyle = copyMap(style)
}

// syncEvents binds and unbinds by set difference against the reserved
// event properties.
func (e *Engine) syncEvents(n *dom.Node, props map[string]string) {
	if e.binder == nil {
		return
	}
	added, removed := dom.Diff(n.Meta.Events, dom.SplitEvents(props[dom.PropEvents]))
	if len(removed) > 0 {
		e.binder.Unbind(n, removed)
	}
	if len(added) > 0 {
		e.binder.Bind(n, added)
	}

	page := e.pageUID()
	added, removed = dom.Diff(n.Meta.DocumentEvents, dom.SplitEvents(props[dom.PropDocumentEvents]))
	if len(removed) > 0 {
		e.binder.UnbindDocument(page, n, removed)
	}
	if len(added) > 0 {
		e.binder.BindDocument(page, n, added)
	}
}

// bindNode binds the events recorded in n's cached reserved properties.
func (e *Engine) bindNode(n *dom.Node) {
	if e.binder == nil || n.Kind != dom.KindElement {
		return
	}
	if names := dom.SplitEvents(n.CachedProps[dom.PropEvents]); len(names) > 0 {
		e.binder.Bind(n, names)
	}
	if names := dom.SplitEvents(n.CachedProps[dom.PropDocumentEvents]); len(names) > 0 {
		e.binder.BindDocument(e.pageUID(), n, names)
	}
}

func (e *Engine) unbindTree(n *dom.Node) {
	if e.binder == nil {
		return
	}
	n.Walk(func(c *dom.Node) bool {
		if len(c.Meta.Events) > 0 || len(c.Meta.DocumentEvents) > 0 {
			e.binder.UnbindAll(c)
		}
		return true
	})
}

// teardown unbinds and unregisters n's subtree.
func (e *Engine) teardown(n *dom.Node) {
	e.unbindTree(n)
	e.reg.UnregisterTree(n)
}

func (e *Engine) teardownChildren(n *dom.Node) {
	for _, c := range n.Children() {
		e.teardown(c)
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
