package protocol

import "fmt"

// PatchOp is the type of patch operation.
// Values are fixed for a protocol version; both ends hardcode them.
type PatchOp int

const (
	PatchReplaceNode  PatchOp = 0 // Replace node, keeping its UID
	PatchRemoveNode   PatchOp = 1 // Detach and unregister node
	PatchInsertNode   PatchOp = 2 // Insert subtree under parent
	PatchAlterText    PatchOp = 3 // Replace text content
	PatchReplaceProps PatchOp = 4 // Replace engine-managed properties
	PatchReplaceStyle PatchOp = 5 // Replace engine-managed style
)

// String returns the string representation of the patch operation.
func (op PatchOp) String() string {
	switch op {
	case PatchReplaceNode:
		return "ReplaceNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchInsertNode:
		return "InsertNode"
	case PatchAlterText:
		return "AlterText"
	case PatchReplaceProps:
		return "ReplaceProps"
	case PatchReplaceStyle:
		return "ReplaceStyle"
	default:
		return "Unknown"
	}
}

// Patch represents a single tree operation.
type Patch struct {
	Op     PatchOp
	UID    string            // Target UID; the parent UID for InsertNode
	Index  int               // InsertNode position
	Node   *NodeWire         // For InsertNode/ReplaceNode
	Text   string            // For AlterText
	Markup bool              // AlterText: Text is markup to render as structure
	Props  map[string]string // For ReplaceProps/ReplaceStyle
}

// Value converts the patch to its wire value [op, uid, payload].
func (p *Patch) Value() []any {
	var payload any
	switch p.Op {
	case PatchReplaceNode:
		payload = p.Node.Value()
	case PatchRemoveNode:
		payload = nil
	case PatchInsertNode:
		payload = []any{int64(p.Index), p.Node.Value()}
	case PatchAlterText:
		if p.Markup {
			payload = map[string]any{"markup": p.Text}
		} else {
			payload = p.Text
		}
	case PatchReplaceProps, PatchReplaceStyle:
		payload = stringMapValue(p.Props)
	}
	return []any{int64(p.Op), p.UID, payload}
}

// DecodePatches decodes a list of patches.
func DecodePatches(v any) ([]Patch, error) {
	list, ok := asList(v)
	if !ok {
		return nil, fmt.Errorf("patch list is %T, want array", v)
	}
	if err := checkCount(len(list)); err != nil {
		return nil, err
	}
	patches := make([]Patch, len(list))
	for i, raw := range list {
		if err := decodePatch(raw, &patches[i]); err != nil {
			return nil, fmt.Errorf("patch %d: %w", i, err)
		}
	}
	return patches, nil
}

// decodePatch decodes a single patch.
func decodePatch(v any, p *Patch) error {
	fields, ok := asList(v)
	if !ok || len(fields) < 2 {
		return fmt.Errorf("want [op, uid, payload], got %T", v)
	}
	op, ok := asInt(fields[0])
	if !ok {
		return fmt.Errorf("op is %T", fields[0])
	}
	p.Op = PatchOp(op)
	if p.UID, ok = asString(fields[1]); !ok {
		return fmt.Errorf("uid is %T", fields[1])
	}

	var payload any
	if len(fields) > 2 {
		payload = fields[2]
	}

	var err error
	switch p.Op {
	case PatchReplaceNode:
		p.Node, err = DecodeNode(payload)

	case PatchRemoveNode:
		// No additional data

	case PatchInsertNode:
		args, ok := asList(payload)
		if !ok || len(args) != 2 {
			return fmt.Errorf("insert payload: want [index, subtree]")
		}
		idx, ok := asInt(args[0])
		if !ok || idx < 0 {
			return fmt.Errorf("insert index is %v", args[0])
		}
		p.Index = int(idx)
		p.Node, err = DecodeNode(args[1])

	case PatchAlterText:
		if s, ok := asOptString(payload); ok {
			p.Text = s
			break
		}
		m, ok := asMap(payload)
		if !ok {
			return fmt.Errorf("text payload is %T", payload)
		}
		if p.Text, ok = asString(m["markup"]); !ok {
			return fmt.Errorf("text payload missing markup")
		}
		p.Markup = true

	case PatchReplaceProps, PatchReplaceStyle:
		p.Props, err = asStringMap(payload)

	default:
		// Unknown op: kept so the engine can log and skip it.
	}
	return err
}

// NewReplaceNodePatch creates a ReplaceNode patch.
func NewReplaceNodePatch(uid string, node *NodeWire) Patch {
	return Patch{Op: PatchReplaceNode, UID: uid, Node: node}
}

// NewRemoveNodePatch creates a RemoveNode patch.
func NewRemoveNodePatch(uid string) Patch {
	return Patch{Op: PatchRemoveNode, UID: uid}
}

// NewInsertNodePatch creates an InsertNode patch.
func NewInsertNodePatch(parentUID string, index int, node *NodeWire) Patch {
	return Patch{Op: PatchInsertNode, UID: parentUID, Index: index, Node: node}
}

// NewAlterTextPatch creates an AlterText patch carrying literal text.
func NewAlterTextPatch(uid, text string) Patch {
	return Patch{Op: PatchAlterText, UID: uid, Text: text}
}

// NewAlterMarkupPatch creates an AlterText patch carrying markup.
func NewAlterMarkupPatch(uid, markup string) Patch {
	return Patch{Op: PatchAlterText, UID: uid, Text: markup, Markup: true}
}

// NewReplacePropsPatch creates a ReplaceProps patch.
func NewReplacePropsPatch(uid string, props map[string]string) Patch {
	return Patch{Op: PatchReplaceProps, UID: uid, Props: props}
}

// NewReplaceStylePatch creates a ReplaceStyle patch.
func NewReplaceStylePatch(uid string, style map[string]string) Patch {
	return Patch{Op: PatchReplaceStyle, UID: uid, Props: style}
}
