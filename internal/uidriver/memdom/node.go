// Package memdom is an in-memory page model implementing the uidriver boundary.
//
// It models just enough of a document for the resolver and page objects: a node
// tree with attributes, visibility, input values, implicit ARIA roles and
// accessible names, plus hooks that stand in for page scripts (autocomplete
// lists, removable chips, flaky clicks). A Page is not safe for concurrent use.
package memdom

import (
	"fmt"
	"strings"
)

// Node is one element in the page tree.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Hidden   bool
	Value    string
	Checked  bool
	Children []*Node

	// OnClick runs after a successful click or check.
	OnClick func(n *Node)
	// OnInput runs after each change to Value caused by typing or deletion.
	OnInput func(n *Node)
	// OnKey runs after every key press sent with Press.
	OnKey func(n *Node, key string)
	// OnChange runs when a widget commits a value to the node.
	OnChange func(n *Node)
	// ClickErr makes every click on this node fail.
	ClickErr error
	// KeyErr makes presses of specific keys on this node fail.
	KeyErr map[string]error

	parent    *Node
	selectAll bool
}

// El creates a node with attributes given as name/value pairs.
func El(tag string, attrs ...string) *Node {
	n := &Node{Tag: strings.ToLower(tag), Attrs: make(map[string]string)}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs[attrs[i]] = attrs[i+1]
	}
	return n
}

// WithText sets the node's own text and returns it.
func (n *Node) WithText(text string) *Node {
	n.Text = text
	return n
}

// Append adds children and returns n.
func (n *Node) Append(children ...*Node) *Node {
	for _, c := range children {
		if c.parent != nil {
			c.Remove()
		}
		c.parent = n
		n.Children = append(n.Children, c)
	}
	return n
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.Children {
		if c == n {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// Clear removes all children.
func (n *Node) Clear() {
	for _, c := range n.Children {
		c.parent = nil
	}
	n.Children = nil
}

// Parent returns the parent node, or nil for the root and detached nodes.
func (n *Node) Parent() *Node { return n.parent }

// Attr returns an attribute value, "" when absent.
func (n *Node) Attr(name string) string { return n.Attrs[name] }

// SetAttr sets an attribute.
func (n *Node) SetAttr(name, value string) {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[name] = value
}

// Show makes the node itself visible.
func (n *Node) Show() { n.Hidden = false }

// Hide makes the node and its subtree invisible.
func (n *Node) Hide() { n.Hidden = true }

// Visible reports whether the node and all its ancestors are shown and the node is attached.
func (n *Node) Visible() bool {
	cur := n
	for cur != nil {
		if cur.Hidden {
			return false
		}
		if cur.parent == nil && cur.Tag != "html" {
			return false
		}
		cur = cur.parent
	}
	return true
}

// TextContent returns the node's text followed by its descendants' text, space separated.
func (n *Node) TextContent() string {
	var parts []string
	var walk func(*Node)
	walk = func(x *Node) {
		if t := strings.TrimSpace(x.Text); t != "" {
			parts = append(parts, t)
		}
		for _, c := range x.Children {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// Role returns the explicit role attribute or the implicit role of the tag.
func (n *Node) Role() string {
	if r := strings.TrimSpace(n.Attrs["role"]); r != "" {
		return r
	}
	switch n.Tag {
	case "button":
		return "button"
	case "article":
		return "article"
	case "dialog":
		return "dialog"
	case "textarea":
		return "textbox"
	case "select":
		return "combobox"
	case "option":
		return "option"
	case "input":
		switch strings.ToLower(n.Attrs["type"]) {
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "button", "submit", "reset":
			return "button"
		case "", "text", "search", "email", "tel", "url":
			return "textbox"
		}
	}
	return ""
}

var nameFromContent = map[string]bool{
	"button": true, "option": true, "radio": true, "checkbox": true,
	"link": true, "tab": true, "menuitem": true,
}

// AccessibleName approximates the accessible name computation used by role lookups.
func (n *Node) AccessibleName() string {
	if v := strings.TrimSpace(n.Attrs["aria-label"]); v != "" {
		return v
	}
	if v := strings.TrimSpace(n.Attrs["title"]); v != "" {
		return v
	}
	if n.isTextInput() {
		return strings.TrimSpace(n.Attrs["placeholder"])
	}
	if nameFromContent[n.Role()] {
		return n.TextContent()
	}
	return ""
}

func (n *Node) isTextInput() bool {
	switch n.Tag {
	case "input", "textarea":
		return n.Role() == "textbox" || n.Role() == "combobox" || n.Role() == "searchbox"
	}
	return n.Attrs["contenteditable"] == "true"
}

// String describes the node for logs and errors.
func (n *Node) String() string {
	var b strings.Builder
	b.WriteString(n.Tag)
	if id := n.Attrs["id"]; id != "" {
		b.WriteString("#" + id)
	}
	if r := n.Attrs["role"]; r != "" {
		fmt.Fprintf(&b, "[role=%s]", r)
	}
	if name := n.AccessibleName(); name != "" {
		fmt.Fprintf(&b, "(%q)", name)
	}
	return b.String()
}

func (n *Node) descendants() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(x *Node) {
		for _, c := range x.Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(n)
	return out
}
