package events

import "github.com/vango-dev/livesync/pkg/dom"

// Value extracts the normalized value sent for an event on n:
// a form yields its field map; a control yields its own value; anything
// else yields the event data.
func Value(n *dom.Node, ev *dom.Event) any {
	switch {
	case n.IsElement("form"):
		return FormValue(n)
	case n.IsControl():
		return ControlValue(n)
	case ev != nil:
		return normalize(ev.Data)
	}
	return nil
}

// FormValue returns the field map of a form. Checkbox groups and
// multi-selects become arrays; file inputs become file descriptors.
func FormValue(form *dom.Node) map[string]any {
	out := make(map[string]any)
	for _, c := range form.Controls() {
		name := c.Name()
		if _, done := out[name]; done {
			continue
		}
		out[name] = ControlValue(c)
	}
	return out
}

// ControlValue returns the normalized value of a single control.
//
//   - checkbox: a bool when alone, the checked values when grouped by name
//   - radio: the checked value of the group, or nil
//   - select: the selected value, or an array for multi-selects
//   - file: {name,size,type}, or an array for multiple inputs
//   - anything else: the current value string
func ControlValue(n *dom.Node) any {
	switch n.InputType() {
	case "checkbox":
		group := sameName(n, "checkbox")
		if len(group) <= 1 {
			return n.Checked
		}
		checked := make([]any, 0, len(group))
		for _, c := range group {
			if c.Checked {
				checked = append(checked, checkedValue(c))
			}
		}
		return checked

	case "radio":
		for _, c := range sameName(n, "radio") {
			if c.Checked {
				return checkedValue(c)
			}
		}
		return nil

	case "select":
		opts := n.SelectedOptions()
		if n.Multiple() {
			vals := make([]any, 0, len(opts))
			for _, o := range opts {
				vals = append(vals, o.OptionValue())
			}
			return vals
		}
		if len(opts) == 0 {
			return ""
		}
		return opts[len(opts)-1].OptionValue()

	case "file":
		files := make([]any, 0, len(n.Files))
		for _, f := range n.Files {
			files = append(files, map[string]any{
				"name": f.Name,
				"size": f.Size,
				"type": f.Type,
			})
		}
		if n.Multiple() {
			return files
		}
		if len(files) == 0 {
			return nil
		}
		return files[0]

	default:
		return n.Value
	}
}

// sameName returns the inputs of the given type sharing n's name, within
// n's form or, outside a form, the whole document. An unnamed input is its
// own group.
func sameName(n *dom.Node, typ string) []*dom.Node {
	name := n.Name()
	if name == "" {
		return []*dom.Node{n}
	}
	scope := n.Form()
	if scope == nil && n.Owner() != nil {
		scope = n.Owner().Body()
	}
	if scope == nil {
		return []*dom.Node{n}
	}
	var out []*dom.Node
	scope.Walk(func(c *dom.Node) bool {
		if c.IsElement("input") && c.InputType() == typ && c.Name() == name {
			out = append(out, c)
		}
		return true
	})
	if len(out) == 0 {
		out = append(out, n)
	}
	return out
}

func checkedValue(n *dom.Node) string {
	if v, ok := n.Attr("value"); ok {
		return v
	}
	return "on"
}

// normalize converts event data into wire-safe values.
func normalize(v any) any {
	switch x := v.(type) {
	case nil, string, bool, int64, float64:
		return x
	case int:
		return int64(x)
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(x))
		for k, s := range x {
			out[k] = s
		}
		return out
	default:
		return x
	}
}
