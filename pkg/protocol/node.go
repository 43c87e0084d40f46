package protocol

import "fmt"

// NodeWire is the wire format for a subtree introduced by INSERT_NODE or
// REPLACE_NODE. A NodeWire with an empty Tag is a text node.
type NodeWire struct {
	Tag      string            // Element tag name; empty for text nodes
	UID      string            // Authority-assigned identifier (optional for static nodes)
	Props    map[string]string // Engine-managed properties, reserved keys included
	Style    map[string]string // Engine-managed style properties
	Text     string            // Text content (text nodes, or leading text of an element)
	Children []*NodeWire       // Child nodes
}

// IsText returns true if this node is a text node.
func (n *NodeWire) IsText() bool {
	return n != nil && n.Tag == ""
}

// Value converts the node to its wire value.
func (n *NodeWire) Value() any {
	if n == nil {
		return nil
	}
	if n.IsText() {
		return n.Text
	}

	m := map[string]any{"tag": n.Tag}
	if n.UID != "" {
		m["uid"] = n.UID
	}
	if len(n.Props) > 0 {
		m["props"] = stringMapValue(n.Props)
	}
	if len(n.Style) > 0 {
		m["style"] = stringMapValue(n.Style)
	}
	if n.Text != "" {
		m["text"] = n.Text
	}
	if len(n.Children) > 0 {
		children := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			if c != nil {
				children = append(children, c.Value())
			}
		}
		m["children"] = children
	}
	return m
}

// Walk calls fn for n and every descendant in document order.
func (n *NodeWire) Walk(fn func(*NodeWire)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// DecodeNode decodes a subtree from its schema-less wire value.
// SECURITY: Enforces MaxNodeDepth and MaxCollectionCount.
func DecodeNode(v any) (*NodeWire, error) {
	return decodeNodeWithDepth(v, 0)
}

func decodeNodeWithDepth(v any, depth int) (*NodeWire, error) {
	if err := checkDepth(depth, MaxNodeDepth); err != nil {
		return nil, err
	}

	if s, ok := asString(v); ok {
		return &NodeWire{Text: s}, nil
	}

	m, ok := asMap(v)
	if !ok || m == nil {
		return nil, fmt.Errorf("subtree is %T, want string or map", v)
	}

	n := &NodeWire{}
	if n.Tag, ok = asString(m["tag"]); !ok || n.Tag == "" {
		return nil, fmt.Errorf("subtree missing tag")
	}
	if n.UID, ok = asOptString(m["uid"]); !ok {
		return nil, fmt.Errorf("subtree uid is %T", m["uid"])
	}
	if n.Text, ok = asOptString(m["text"]); !ok {
		return nil, fmt.Errorf("subtree text is %T", m["text"])
	}

	var err error
	if raw, present := m["props"]; present && raw != nil {
		if n.Props, err = asStringMap(raw); err != nil {
			return nil, fmt.Errorf("props: %w", err)
		}
	}
	if raw, present := m["style"]; present && raw != nil {
		if n.Style, err = asStringMap(raw); err != nil {
			return nil, fmt.Errorf("style: %w", err)
		}
	}

	children, ok := asList(m["children"])
	if !ok {
		return nil, fmt.Errorf("children is %T, want array", m["children"])
	}
	if err := checkCount(len(children)); err != nil {
		return nil, err
	}
	if len(children) > 0 {
		n.Children = make([]*NodeWire, 0, len(children))
		for _, c := range children {
			child, err := decodeNodeWithDepth(c, depth+1)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
	}
	return n, nil
}

// NewTextWire creates a text NodeWire.
func NewTextWire(text string) *NodeWire {
	return &NodeWire{Text: text}
}

// NewElementWire creates an element NodeWire.
func NewElementWire(tag, uid string, props map[string]string, children ...*NodeWire) *NodeWire {
	return &NodeWire{
		Tag:      tag,
		UID:      uid,
		Props:    props,
		Children: children,
	}
}
