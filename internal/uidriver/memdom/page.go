package memdom

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/kuitang/flightprobe/internal/uidriver"
)

// Page is an in-memory document rooted at <html><body>.
type Page struct {
	// OnGoto runs after navigation, typically to (re)build the body.
	OnGoto func(p *Page, url string)
	// ScreenshotErr makes Screenshot fail.
	ScreenshotErr error

	root    *Node
	body    *Node
	url     string
	focused *Node
	events  []string
}

var _ uidriver.Page = (*Page)(nil)

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	body := El("body")
	root := El("html").Append(body)
	return &Page{root: root, body: body, url: "about:blank"}
}

// Body returns the <body> node that fixtures attach content to.
func (p *Page) Body() *Node { return p.body }

// Focused returns the node that last received a click or key press.
func (p *Page) Focused() *Node { return p.focused }

// Events returns the recorded interaction log, one entry per action.
func (p *Page) Events() []string {
	out := make([]string, len(p.events))
	copy(out, p.events)
	return out
}

func (p *Page) record(format string, args ...any) {
	p.events = append(p.events, fmt.Sprintf(format, args...))
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.url = url
	p.focused = nil
	p.record("goto %s", url)
	if p.OnGoto != nil {
		p.OnGoto(p, url)
	}
	return nil
}

func (p *Page) URL() string { return p.url }

func (p *Page) WaitForNetworkIdle(ctx context.Context, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.record("networkidle")
	return nil
}

// pngHeader is enough of a PNG for callers that only store the bytes.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.record("screenshot")
	out := make([]byte, len(pngHeader))
	copy(out, pngHeader)
	return out, nil
}

func (p *Page) ByRole(role uidriver.Role, name *regexp.Regexp) uidriver.Element {
	return p.newElement(describeRole(role, name), func() []*Node {
		return matchRole(p.root.descendants(), role, name)
	})
}

func (p *Page) ByPlaceholder(placeholder *regexp.Regexp) uidriver.Element {
	return p.newElement(fmt.Sprintf("placeholder=/%s/", placeholder), func() []*Node {
		var out []*Node
		for _, n := range p.root.descendants() {
			if v, ok := n.Attrs["placeholder"]; ok && placeholder.MatchString(v) {
				out = append(out, n)
			}
		}
		return out
	})
}

func (p *Page) ByText(text *regexp.Regexp) uidriver.Element {
	return p.newElement(fmt.Sprintf("text=/%s/", text), func() []*Node {
		return matchText(p.root.descendants(), text)
	})
}

func (p *Page) Locate(selector string) uidriver.Element {
	sel, err := parseSelector(selector)
	return p.newElement(selector, func() []*Node {
		if err != nil {
			return nil
		}
		return matchSelector(p.root.descendants(), sel, nil)
	}).withErr(err)
}

func describeRole(role uidriver.Role, name *regexp.Regexp) string {
	if name == nil {
		return fmt.Sprintf("role=%s", role)
	}
	return fmt.Sprintf("role=%s[name=/%s/]", role, name)
}

// matchRole keeps visible nodes with the role whose accessible name matches.
func matchRole(nodes []*Node, role uidriver.Role, name *regexp.Regexp) []*Node {
	var out []*Node
	for _, n := range nodes {
		if n.Role() != string(role) || !n.Visible() {
			continue
		}
		if name != nil && !name.MatchString(n.AccessibleName()) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// matchText keeps the innermost nodes whose text content matches.
func matchText(nodes []*Node, text *regexp.Regexp) []*Node {
	var out []*Node
	for _, n := range nodes {
		if !text.MatchString(n.TextContent()) {
			continue
		}
		inner := false
		for _, c := range n.Children {
			if text.MatchString(c.TextContent()) {
				inner = true
				break
			}
		}
		if !inner {
			out = append(out, n)
		}
	}
	return out
}

func matchSelector(nodes []*Node, sel selector, scope *Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		if sel.matches(n, scope) {
			out = append(out, n)
		}
	}
	return out
}
