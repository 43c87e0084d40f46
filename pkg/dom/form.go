package dom

import "strings"

// File is a file selected in a file input.
type File struct {
	Name string
	Size int64
	Type string
}

// DefaultValidationMessage is reported for a missing required value.
const DefaultValidationMessage = "Please fill out this field."

// Name returns the control name attribute.
func (n *Node) Name() string {
	v, _ := n.Attr("name")
	return v
}

// InputType returns the lower-cased type of an input element, defaulting
// to "text". Non-input elements return their tag.
func (n *Node) InputType() string {
	if !n.IsElement("input") {
		return n.Tag
	}
	t, ok := n.Attr("type")
	if !ok || t == "" {
		return "text"
	}
	return strings.ToLower(t)
}

// IsControl reports whether n is a form control.
func (n *Node) IsControl() bool {
	return n.IsElement("input") || n.IsElement("select") || n.IsElement("textarea")
}

// Disabled reports whether the control is disabled.
func (n *Node) Disabled() bool { return n.HasAttr("disabled") }

// Multiple reports whether a select or file input accepts many values.
func (n *Node) Multiple() bool { return n.HasAttr("multiple") }

// Form returns the form element that owns n, or nil.
func (n *Node) Form() *Node { return n.Closest("form") }

// Controls returns the named, enabled controls of a form in document order.
func (n *Node) Controls() []*Node {
	var out []*Node
	for _, c := range n.children {
		c.Walk(func(x *Node) bool {
			if x.IsControl() && x.Name() != "" && !x.Disabled() {
				out = append(out, x)
			}
			return true
		})
	}
	return out
}

// SelectedOptions returns the selected option elements of a select.
func (n *Node) SelectedOptions() []*Node {
	var out []*Node
	n.Walk(func(x *Node) bool {
		if x.IsElement("option") && x.Selected {
			out = append(out, x)
		}
		return true
	})
	return out
}

// OptionValue returns an option's value attribute, or its text.
func (n *Node) OptionValue() string {
	if v, ok := n.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(n.TextContent())
}

// SetCustomValidity sets a custom validation message. An empty message
// clears it.
func (n *Node) SetCustomValidity(msg string) { n.validity = msg }

// ValidationMessage returns why the element is invalid, or "".
// For a form, it is the message of its first invalid control.
func (n *Node) ValidationMessage() string {
	if n.IsElement("form") {
		for _, c := range n.Controls() {
			if msg := c.ValidationMessage(); msg != "" {
				return msg
			}
		}
		return ""
	}
	if n.validity != "" {
		return n.validity
	}
	if !n.IsControl() || !n.HasAttr("required") || n.Disabled() {
		return ""
	}
	switch n.InputType() {
	case "checkbox", "radio":
		if !n.Checked {
			return DefaultValidationMessage
		}
	case "file":
		if len(n.Files) == 0 {
			return DefaultValidationMessage
		}
	case "select":
		if len(n.SelectedOptions()) == 0 {
			return DefaultValidationMessage
		}
	default:
		if n.Value == "" {
			return DefaultValidationMessage
		}
	}
	return ""
}

// Valid reports whether the element satisfies its constraints.
func (n *Node) Valid() bool { return n.ValidationMessage() == "" }

// ReportValidity checks validity and, when invalid, records native
// feedback on the offending controls. It returns the validity.
func (n *Node) ReportValidity() bool {
	if !n.IsElement("form") {
		if n.Valid() {
			return true
		}
		n.reported++
		return false
	}
	valid := true
	for _, c := range n.Controls() {
		if !c.Valid() {
			c.reported++
			valid = false
		}
	}
	return valid
}

// ValidityReports returns how many times feedback was shown on n.
func (n *Node) ValidityReports() int { return n.reported }
