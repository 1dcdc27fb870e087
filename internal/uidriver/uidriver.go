// Package uidriver is the boundary between page logic and a browser-automation driver.
//
// Elements are lazy: an Element describes how to find nodes and is re-resolved
// on every call, the same way Playwright locators behave. Lookups never wait;
// callers that need a node to appear use the wait package with an explicit bound.
package uidriver

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Role is an ARIA role.
type Role string

const (
	RoleArticle    Role = "article"
	RoleButton     Role = "button"
	RoleCheckbox   Role = "checkbox"
	RoleCombobox   Role = "combobox"
	RoleDialog     Role = "dialog"
	RoleListbox    Role = "listbox"
	RoleOption     Role = "option"
	RoleRadio      Role = "radio"
	RoleRadiogroup Role = "radiogroup"
	RoleTextbox    Role = "textbox"
)

// Page is a single document in its own browser context.
type Page interface {
	Goto(ctx context.Context, url string) error
	URL() string

	// ByRole matches elements by ARIA role and, when name is non-nil, accessible name.
	ByRole(role Role, name *regexp.Regexp) Element
	ByPlaceholder(placeholder *regexp.Regexp) Element
	ByText(text *regexp.Regexp) Element
	// Locate matches a CSS selector. The ":visible" pseudo-class is supported.
	Locate(selector string) Element

	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Element is a lazily resolved handle to zero or more nodes.
// Actions and reads require exactly one node, so callers narrow with First.
type Element interface {
	// Describe returns a human-readable description of the lookup for logs and errors.
	Describe() string

	First() Element
	ByRole(role Role, name *regexp.Regexp) Element
	ByText(text *regexp.Regexp) Element
	Locate(selector string) Element
	Filter(hasText *regexp.Regexp) Element
	// Parent resolves to the parent node of each match.
	Parent() Element

	Count(ctx context.Context) (int, error)
	IsVisible(ctx context.Context) (bool, error)
	// Attribute returns "" when the attribute is absent.
	Attribute(ctx context.Context, name string) (string, error)
	Value(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)

	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context) error
	Check(ctx context.Context) error
	Press(ctx context.Context, key string) error
	// TypeText sends one key event per character with delay between characters.
	TypeText(ctx context.Context, text string, delay time.Duration) error
}

// ByID matches the element whose id attribute equals id, wherever it sits in the document.
func ByID(p Page, id string) Element {
	return p.Locate(AttrSelector("id", id))
}

// AttrSelector builds an exact-match CSS attribute selector with a quoted value.
func AttrSelector(name, value string) string {
	return "[" + name + "=" + QuoteCSS(value) + "]"
}

// QuoteCSS quotes s as a CSS string literal.
func QuoteCSS(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\a `)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FirstIDRef returns the first id from an ID reference list such as aria-controls.
func FirstIDRef(list string) string {
	fields := strings.Fields(list)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// IsVisible reports whether el currently resolves to a visible node,
// treating lookup errors as not visible.
func IsVisible(ctx context.Context, el Element) bool {
	visible, err := el.IsVisible(ctx)
	return err == nil && visible
}
