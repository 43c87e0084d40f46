package dom

import (
	"sort"
	"strings"
)

// Kind is the node type discriminator.
type Kind uint8

const (
	KindElement Kind = iota // <div>, <input>, etc.
	KindText                // Plain text node
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	default:
		return "Unknown"
	}
}

// Node is a node of the displayed document.
type Node struct {
	Kind Kind
	Tag  string // Lower-case tag name, elements only

	// Meta is reserved engine metadata. It is never part of the
	// attribute set.
	Meta Meta

	// CachedProps and CachedStyle mirror exactly what the engine last
	// wrote. They are a subset of the runtime attribute and style sets.
	CachedProps map[string]string
	CachedStyle map[string]string

	// Form state.
	Value    string
	Checked  bool
	Selected bool
	Files    []File

	doc       *Document
	parent    *Node
	children  []*Node
	text      string
	attrs     map[string]string
	style     map[string]string
	listeners map[string][]*listener
	validity  string
	reported  int
}

// Owner returns the document that created the node.
func (n *Node) Owner() *Document { return n.doc }

// Parent returns the parent node, or nil if detached.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// IsElement reports whether n is an element with the given tag.
// An empty tag matches any element.
func (n *Node) IsElement(tag string) bool {
	return n != nil && n.Kind == KindElement && (tag == "" || n.Tag == tag)
}

// Connected reports whether n is attached to its document's tree.
func (n *Node) Connected() bool {
	if n.doc == nil {
		return false
	}
	for p := n; p != nil; p = p.parent {
		if p == n.doc.body {
			return true
		}
	}
	return false
}

// Index returns the position of n among its siblings, or -1.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// =============================================================================
// Attributes
// =============================================================================

// Attr returns the value of an attribute.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// HasAttr reports whether the attribute is present.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.attrs[name]
	return ok
}

// SetAttr sets an attribute.
func (n *Node) SetAttr(name, value string) {
	if old, ok := n.attrs[name]; ok && old == value {
		return
	}
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[name] = value
	switch name {
	case "value":
		n.Value = value
	case "checked":
		n.Checked = true
	case "selected":
		n.Selected = true
	}
	n.notify(Mutation{Type: MutationAttributes, Target: n, Name: name})
}

// RemoveAttr removes an attribute.
func (n *Node) RemoveAttr(name string) {
	if _, ok := n.attrs[name]; !ok {
		return
	}
	delete(n.attrs, name)
	switch name {
	case "checked":
		n.Checked = false
	case "selected":
		n.Selected = false
	}
	n.notify(Mutation{Type: MutationAttributes, Target: n, Name: name})
}

// AttrNames returns the attribute names in sorted order.
func (n *Node) AttrNames() []string {
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Style
// =============================================================================

// StyleProp returns an inline style property.
func (n *Node) StyleProp(name string) (string, bool) {
	v, ok := n.style[name]
	return v, ok
}

// SetStyleProp sets an inline style property.
func (n *Node) SetStyleProp(name, value string) {
	if old, ok := n.style[name]; ok && old == value {
		return
	}
	if n.style == nil {
		n.style = make(map[string]string)
	}
	n.style[name] = value
	n.notify(Mutation{Type: MutationAttributes, Target: n, Name: "style"})
}

// RemoveStyleProp removes an inline style property.
func (n *Node) RemoveStyleProp(name string) {
	if _, ok := n.style[name]; !ok {
		return
	}
	delete(n.style, name)
	n.notify(Mutation{Type: MutationAttributes, Target: n, Name: "style"})
}

// StyleText serializes the inline style as "k: v; k2: v2" in key order.
func (n *Node) StyleText() string {
	if len(n.style) == 0 {
		return ""
	}
	keys := make([]string, 0, len(n.style))
	for k := range n.style {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(n.style[k])
	}
	return sb.String()
}

// =============================================================================
// Text
// =============================================================================

// Data returns the character data of a text node.
func (n *Node) Data() string { return n.text }

// SetData replaces the character data of a text node.
func (n *Node) SetData(s string) {
	if n.text == s {
		return
	}
	n.text = s
	n.notify(Mutation{Type: MutationCharacterData, Target: n})
}

// TextContent returns the concatenated text of n and its descendants.
func (n *Node) TextContent() string {
	if n.Kind == KindText {
		return n.text
	}
	var sb strings.Builder
	n.Walk(func(c *Node) bool {
		if c.Kind == KindText {
			sb.WriteString(c.text)
		}
		return true
	})
	return sb.String()
}

// SetTextContent replaces n's content with a single text node.
func (n *Node) SetTextContent(s string) {
	if n.Kind == KindText {
		n.SetData(s)
		return
	}
	n.ReplaceChildren(n.doc.CreateText(s))
}

// =============================================================================
// Tree manipulation
// =============================================================================

// AppendChild appends c as the last child of n.
func (n *Node) AppendChild(c *Node) {
	n.InsertChild(len(n.children), c)
}

// InsertChild inserts c at index i. An index past the end appends.
func (n *Node) InsertChild(i int, c *Node) {
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	if i < 0 {
		i = 0
	}
	if i >= len(n.children) {
		n.children = append(n.children, c)
	} else {
		n.children = append(n.children, nil)
		copy(n.children[i+1:], n.children[i:])
		n.children[i] = c
	}
	c.parent = n
	n.notify(Mutation{Type: MutationChildList, Target: n, Added: []*Node{c}})
}

// RemoveChild detaches c from n. It is a no-op if c is not a child of n.
func (n *Node) RemoveChild(c *Node) {
	if c.parent != n {
		return
	}
	i := c.Index()
	n.children = append(n.children[:i], n.children[i+1:]...)
	c.parent = nil
	n.notify(Mutation{Type: MutationChildList, Target: n, Removed: []*Node{c}})
}

// ReplaceChild swaps old for c in place.
func (n *Node) ReplaceChild(c, old *Node) {
	if old.parent != n {
		return
	}
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	i := old.Index()
	n.children[i] = c
	old.parent = nil
	c.parent = n
	n.notify(Mutation{Type: MutationChildList, Target: n, Added: []*Node{c}, Removed: []*Node{old}})
}

// ReplaceChildren removes every child and appends cs.
func (n *Node) ReplaceChildren(cs ...*Node) {
	removed := n.children
	for _, c := range removed {
		c.parent = nil
	}
	n.children = make([]*Node, 0, len(cs))
	for _, c := range cs {
		if c.parent != nil {
			c.parent.RemoveChild(c)
		}
		c.parent = n
		n.children = append(n.children, c)
	}
	if len(removed) > 0 || len(cs) > 0 {
		n.notify(Mutation{Type: MutationChildList, Target: n, Added: cs, Removed: removed})
	}
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// Walk calls fn for n and each descendant in document order.
// Returning false from fn skips that node's descendants.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Closest returns the nearest inclusive ancestor element with the tag.
func (n *Node) Closest(tag string) *Node {
	for p := n; p != nil; p = p.parent {
		if p.IsElement(tag) {
			return p
		}
	}
	return nil
}

func (n *Node) notify(m Mutation) {
	if n.doc != nil && n.Connected() {
		n.doc.record(m)
	}
}
