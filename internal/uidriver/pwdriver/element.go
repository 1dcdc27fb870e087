package pwdriver

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/flightprobe/internal/uidriver"
)

// element adapts a playwright.Locator. Every call is bounded by the context
// deadline, or by the page default when the context has none.
type element struct {
	loc     playwright.Locator
	desc    string
	timeout time.Duration
}

var _ uidriver.Element = (*element)(nil)

func (e *element) Describe() string { return e.desc }

func (e *element) derive(loc playwright.Locator, desc string) *element {
	return &element{loc: loc, desc: e.desc + " >> " + desc, timeout: e.timeout}
}

func (e *element) First() uidriver.Element {
	return e.derive(e.loc.First(), "nth=0")
}

func (e *element) ByRole(role uidriver.Role, name *regexp.Regexp) uidriver.Element {
	opts := playwright.LocatorGetByRoleOptions{}
	if name != nil {
		opts.Name = name
	}
	return e.derive(e.loc.GetByRole(playwright.AriaRole(role), opts), describeRole(role, name))
}

func (e *element) ByText(text *regexp.Regexp) uidriver.Element {
	return e.derive(e.loc.GetByText(text), fmt.Sprintf("text=/%s/", text))
}

func (e *element) Locate(selector string) uidriver.Element {
	return e.derive(e.loc.Locator(selector), selector)
}

func (e *element) Filter(hasText *regexp.Regexp) uidriver.Element {
	return e.derive(e.loc.Filter(playwright.LocatorFilterOptions{HasText: hasText}), fmt.Sprintf("has-text=/%s/", hasText))
}

func (e *element) Parent() uidriver.Element {
	return e.derive(e.loc.Locator("xpath=.."), "..")
}

func (e *element) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return e.loc.Count()
}

func (e *element) IsVisible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.loc.IsVisible()
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: budget(ctx, e.timeout)})
	if err != nil {
		return "", fmt.Errorf("read %s of %s: %w", name, e.desc, err)
	}
	return v, nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.loc.InputValue(playwright.LocatorInputValueOptions{Timeout: budget(ctx, e.timeout)})
	if err != nil {
		return "", fmt.Errorf("read value of %s: %w", e.desc, err)
	}
	return v, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.loc.InnerText(playwright.LocatorInnerTextOptions{Timeout: budget(ctx, e.timeout)})
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", e.desc, err)
	}
	return v, nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.loc.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: budget(ctx, e.timeout)})
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loc.Click(playwright.LocatorClickOptions{Timeout: budget(ctx, e.timeout)}); err != nil {
		return fmt.Errorf("click %s: %w", e.desc, err)
	}
	return nil
}

func (e *element) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loc.Check(playwright.LocatorCheckOptions{Timeout: budget(ctx, e.timeout)}); err != nil {
		return fmt.Errorf("check %s: %w", e.desc, err)
	}
	return nil
}

func (e *element) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loc.Press(key, playwright.LocatorPressOptions{Timeout: budget(ctx, e.timeout)}); err != nil {
		return fmt.Errorf("press %s on %s: %w", key, e.desc, err)
	}
	return nil
}

func (e *element) TypeText(ctx context.Context, text string, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Typing takes at least len(text)*delay; give it that on top of the action budget.
	typing := time.Duration(len([]rune(text))) * delay
	err := e.loc.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   playwright.Float(ms(delay)),
		Timeout: budget(ctx, e.timeout+typing),
	})
	if err != nil {
		return fmt.Errorf("type into %s: %w", e.desc, err)
	}
	return nil
}
