package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses markup into detached nodes owned by d.
// The markup is parsed in the context of a <div>.
func (d *Document) ParseFragment(markup string) ([]*Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	parsed, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*Node, 0, len(parsed))
	for _, p := range parsed {
		if n := d.fromHTML(p); n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (d *Document) fromHTML(h *html.Node) *Node {
	switch h.Type {
	case html.TextNode:
		return d.CreateText(h.Data)
	case html.ElementNode:
		n := d.CreateElement(h.Data)
		for _, a := range h.Attr {
			if a.Key == "style" {
				for k, v := range ParseStyle(a.Val) {
					n.SetStyleProp(k, v)
				}
				continue
			}
			n.SetAttr(a.Key, a.Val)
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if child := d.fromHTML(c); child != nil {
				n.AppendChild(child)
			}
		}
		return n
	default:
		// Comments and doctypes carry no displayed content.
		return nil
	}
}

// ParseStyle parses an inline style declaration list.
func ParseStyle(s string) map[string]string {
	out := make(map[string]string)
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// HTML renders n and its descendants as markup. Attributes are emitted in
// sorted order; inline style is emitted as a style attribute.
func (n *Node) HTML() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n.toHTML()); err != nil {
		return ""
	}
	return buf.String()
}

// InnerHTML renders n's children as markup.
func (n *Node) InnerHTML() string {
	var buf bytes.Buffer
	for _, c := range n.children {
		if err := html.Render(&buf, c.toHTML()); err != nil {
			return ""
		}
	}
	return buf.String()
}

func (n *Node) toHTML() *html.Node {
	if n.Kind == KindText {
		return &html.Node{Type: html.TextNode, Data: n.text}
	}
	h := &html.Node{Type: html.ElementNode, Data: n.Tag, DataAtom: atom.Lookup([]byte(n.Tag))}
	for _, k := range n.AttrNames() {
		h.Attr = append(h.Attr, html.Attribute{Key: k, Val: n.attrs[k]})
	}
	if st := n.StyleText(); st != "" {
		h.Attr = append(h.Attr, html.Attribute{Key: "style", Val: st})
	}
	for _, c := range n.children {
		h.AppendChild(c.toHTML())
	}
	return h
}
