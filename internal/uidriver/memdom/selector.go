package memdom

import (
	"fmt"
	"strings"
)

// The selector subset: comma-separated lists of descendant chains of compounds
// made of an optional tag, attribute tests ([a], [a="v"], [a*="v"], [a^="v"],
// [a$="v"]) and an optional :visible pseudo-class.

type attrTest struct {
	name  string
	op    string
	value string
}

type compound struct {
	tag     string
	attrs   []attrTest
	visible bool
}

type chain []compound

type selector []chain

func parseSelector(src string) (selector, error) {
	var sel selector
	for _, part := range splitTopLevel(src, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("memdom: empty selector in %q", src)
		}
		var ch chain
		for _, piece := range splitTopLevel(part, ' ') {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			c, err := parseCompound(piece)
			if err != nil {
				return nil, fmt.Errorf("memdom: %w in %q", err, src)
			}
			ch = append(ch, c)
		}
		sel = append(sel, ch)
	}
	return sel, nil
}

// splitTopLevel splits on sep outside brackets and quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == '\\' {
				i++
			} else if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == '[':
			depth++
		case ch == ']':
			depth--
		case ch == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func parseCompound(s string) (compound, error) {
	var c compound
	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	c.tag = strings.ToLower(s[:i])
	for i < len(s) {
		switch {
		case s[i] == '[':
			end, test, err := parseAttrTest(s, i+1)
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, test)
			i = end
		case strings.HasPrefix(s[i:], ":visible"):
			c.visible = true
			i += len(":visible")
		default:
			return c, fmt.Errorf("unsupported selector syntax at %q", s[i:])
		}
	}
	return c, nil
}

func parseAttrTest(s string, i int) (int, attrTest, error) {
	var t attrTest
	start := i
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	t.name = s[start:i]
	if t.name == "" {
		return 0, t, fmt.Errorf("missing attribute name")
	}
	if i < len(s) && s[i] == ']' {
		return i + 1, t, nil
	}
	for _, op := range []string{"*=", "^=", "$=", "="} {
		if strings.HasPrefix(s[i:], op) {
			t.op = op
			i += len(op)
			break
		}
	}
	if t.op == "" {
		return 0, t, fmt.Errorf("unsupported attribute operator at %q", s[i:])
	}
	if i < len(s) && (s[i] == '"' || s[i] == '\'') {
		quote := s[i]
		var b strings.Builder
		i++
		for i < len(s) && s[i] != quote {
			if s[i] == '\\' && i+1 < len(s) {
				i++
			}
			b.WriteByte(s[i])
			i++
		}
		if i >= len(s) {
			return 0, t, fmt.Errorf("unterminated string")
		}
		t.value = b.String()
		i++
	} else {
		start := i
		for i < len(s) && s[i] != ']' {
			i++
		}
		t.value = strings.TrimSpace(s[start:i])
	}
	if i >= len(s) || s[i] != ']' {
		return 0, t, fmt.Errorf("unterminated attribute test")
	}
	return i + 1, t, nil
}

func isIdentByte(b byte) bool {
	return b == '-' || b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (c compound) matches(n *Node) bool {
	if c.tag != "" && c.tag != "*" && c.tag != n.Tag {
		return false
	}
	for _, t := range c.attrs {
		v, ok := n.Attrs[t.name]
		if !ok {
			return false
		}
		switch t.op {
		case "":
		case "=":
			if v != t.value {
				return false
			}
		case "*=":
			if t.value == "" || !strings.Contains(v, t.value) {
				return false
			}
		case "^=":
			if t.value == "" || !strings.HasPrefix(v, t.value) {
				return false
			}
		case "$=":
			if t.value == "" || !strings.HasSuffix(v, t.value) {
				return false
			}
		}
	}
	if c.visible && !n.Visible() {
		return false
	}
	return true
}

// matches reports whether n matches the chain, with scope bounding ancestor
// matches for descendant combinators (nil scope means the whole document).
func (ch chain) matches(n, scope *Node) bool {
	if len(ch) == 0 || !ch[len(ch)-1].matches(n) {
		return false
	}
	cur := n.parent
	for i := len(ch) - 2; i >= 0; i-- {
		for cur != nil && cur != scope && !ch[i].matches(cur) {
			cur = cur.parent
		}
		if cur == nil || cur == scope {
			return false
		}
		cur = cur.parent
	}
	return true
}

func (s selector) matches(n, scope *Node) bool {
	for _, ch := range s {
		if ch.matches(n, scope) {
			return true
		}
	}
	return false
}
