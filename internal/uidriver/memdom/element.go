package memdom

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kuitang/flightprobe/internal/uidriver"
)

var (
	// ErrNoMatch is returned by reads and actions on an element that resolves to nothing.
	ErrNoMatch = errors.New("memdom: no element matches")
	// ErrStrictMode is returned when an element resolves to more than one node.
	ErrStrictMode = errors.New("memdom: strict mode violation")
	// ErrNotVisible is returned by actions on hidden nodes.
	ErrNotVisible = errors.New("memdom: element is not visible")
	// ErrNotEditable is returned when typing into or reading the value of a non-input.
	ErrNotEditable = errors.New("memdom: element is not an editable input")
)

type element struct {
	page *Page
	desc string
	find func() []*Node
	err  error
}

var _ uidriver.Element = (*element)(nil)

func (p *Page) newElement(desc string, find func() []*Node) *element {
	return &element{page: p, desc: desc, find: find}
}

func (e *element) withErr(err error) *element {
	e.err = err
	return e
}

func (e *element) Describe() string { return e.desc }

func (e *element) derive(desc string, find func() []*Node) *element {
	return &element{page: e.page, desc: e.desc + " >> " + desc, find: find, err: e.err}
}

func (e *element) First() uidriver.Element {
	return e.derive("nth=0", func() []*Node {
		nodes := e.find()
		if len(nodes) == 0 {
			return nil
		}
		return nodes[:1]
	})
}

// within returns the distinct descendants of every node e resolves to.
func (e *element) within() []*Node {
	seen := make(map[*Node]bool)
	var out []*Node
	for _, n := range e.find() {
		for _, d := range n.descendants() {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	return out
}

func (e *element) ByRole(role uidriver.Role, name *regexp.Regexp) uidriver.Element {
	return e.derive(describeRole(role, name), func() []*Node {
		return matchRole(e.within(), role, name)
	})
}

func (e *element) ByText(text *regexp.Regexp) uidriver.Element {
	return e.derive(fmt.Sprintf("text=/%s/", text), func() []*Node {
		return matchText(e.within(), text)
	})
}

func (e *element) Locate(selector string) uidriver.Element {
	sel, err := parseSelector(selector)
	d := e.derive(selector, func() []*Node {
		if err != nil {
			return nil
		}
		var out []*Node
		for _, scope := range e.find() {
			out = append(out, matchSelector(scope.descendants(), sel, scope)...)
		}
		return out
	})
	if err != nil {
		d.err = err
	}
	return d
}

func (e *element) Filter(hasText *regexp.Regexp) uidriver.Element {
	return e.derive(fmt.Sprintf("has-text=/%s/", hasText), func() []*Node {
		var out []*Node
		for _, n := range e.find() {
			if hasText.MatchString(n.TextContent()) {
				out = append(out, n)
			}
		}
		return out
	})
}

func (e *element) Parent() uidriver.Element {
	return e.derive("..", func() []*Node {
		seen := make(map[*Node]bool)
		var out []*Node
		for _, n := range e.find() {
			if p := n.parent; p != nil && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
		return out
	})
}

func (e *element) Count(ctx context.Context) (int, error) {
	if err := e.check(ctx); err != nil {
		return 0, err
	}
	return len(e.find()), nil
}

func (e *element) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.err
}

// one resolves the element to exactly one node.
func (e *element) one(ctx context.Context) (*Node, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	nodes := e.find()
	switch len(nodes) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, e.desc)
	case 1:
		return nodes[0], nil
	default:
		return nil, fmt.Errorf("%w: %s resolved to %d elements", ErrStrictMode, e.desc, len(nodes))
	}
}

// actionable resolves to exactly one visible node.
func (e *element) actionable(ctx context.Context) (*Node, error) {
	n, err := e.one(ctx)
	if err != nil {
		return nil, err
	}
	if !n.Visible() {
		return nil, fmt.Errorf("%w: %s", ErrNotVisible, e.desc)
	}
	return n, nil
}

func (e *element) IsVisible(ctx context.Context) (bool, error) {
	if err := e.check(ctx); err != nil {
		return false, err
	}
	nodes := e.find()
	switch len(nodes) {
	case 0:
		return false, nil
	case 1:
		return nodes[0].Visible(), nil
	default:
		return false, fmt.Errorf("%w: %s resolved to %d elements", ErrStrictMode, e.desc, len(nodes))
	}
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	n, err := e.one(ctx)
	if err != nil {
		return "", err
	}
	return n.Attrs[name], nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	n, err := e.one(ctx)
	if err != nil {
		return "", err
	}
	switch n.Tag {
	case "input", "textarea", "select":
		return n.Value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotEditable, e.desc)
}

func (e *element) Text(ctx context.Context) (string, error) {
	n, err := e.one(ctx)
	if err != nil {
		return "", err
	}
	return n.TextContent(), nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	n, err := e.actionable(ctx)
	if err != nil {
		return err
	}
	e.page.record("scroll %s", n)
	return nil
}

func (e *element) Click(ctx context.Context) error {
	n, err := e.actionable(ctx)
	if err != nil {
		return err
	}
	if n.ClickErr != nil {
		return fmt.Errorf("click %s: %w", e.desc, n.ClickErr)
	}
	e.page.focused = n
	e.page.record("click %s", n)
	if n.OnClick != nil {
		n.OnClick(n)
	}
	return nil
}

func (e *element) Check(ctx context.Context) error {
	n, err := e.actionable(ctx)
	if err != nil {
		return err
	}
	role := n.Role()
	if role != string(uidriver.RoleCheckbox) && role != string(uidriver.RoleRadio) {
		return fmt.Errorf("memdom: %s is not a checkbox or radio", e.desc)
	}
	if n.ClickErr != nil {
		return fmt.Errorf("check %s: %w", e.desc, n.ClickErr)
	}
	e.page.focused = n
	if n.Checked {
		return nil
	}
	if role == string(uidriver.RoleRadio) && n.parent != nil {
		for _, sib := range n.parent.Children {
			if sib.Role() == role {
				sib.Checked = false
			}
		}
	}
	n.Checked = true
	e.page.record("check %s", n)
	if n.OnClick != nil {
		n.OnClick(n)
	}
	return nil
}

func (e *element) Press(ctx context.Context, key string) error {
	n, err := e.actionable(ctx)
	if err != nil {
		return err
	}
	if kerr := n.KeyErr[key]; kerr != nil {
		return fmt.Errorf("press %s on %s: %w", key, e.desc, kerr)
	}
	e.page.focused = n
	e.page.record("press %s %s", key, n)

	before := n.Value
	switch key {
	case "Control+A", "Meta+A":
		n.selectAll = true
	case "Delete", "Backspace":
		if n.selectAll {
			n.Value = ""
		} else if key == "Backspace" && n.Value != "" {
			_, size := utf8.DecodeLastRuneInString(n.Value)
			n.Value = n.Value[:len(n.Value)-size]
		}
		n.selectAll = false
	default:
		n.selectAll = false
	}
	if n.Value != before && n.OnInput != nil {
		n.OnInput(n)
	}
	if n.OnKey != nil {
		n.OnKey(n, key)
	}
	return nil
}

func (e *element) TypeText(ctx context.Context, text string, delay time.Duration) error {
	n, err := e.actionable(ctx)
	if err != nil {
		return err
	}
	if !n.isTextInput() {
		return fmt.Errorf("%w: %s", ErrNotEditable, e.desc)
	}
	e.page.focused = n
	e.page.record("type %q delay=%s %s", text, delay, n)

	for i, r := range text {
		if i > 0 && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if n.selectAll {
			n.Value = ""
			n.selectAll = false
		}
		n.Value += string(r)
		if n.OnInput != nil {
			n.OnInput(n)
		}
	}
	return nil
}

// String is the element description.
func (e *element) String() string { return strings.TrimSpace(e.desc) }
