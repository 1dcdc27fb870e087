package pwdriver

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/flightprobe/internal/uidriver"
)

// Page adapts a playwright.Page to uidriver.Page.
type Page struct {
	page    playwright.Page
	bctx    playwright.BrowserContext
	timeout time.Duration
}

var _ uidriver.Page = (*Page)(nil)

// Wrap adapts an existing Playwright page. Close on the result only closes the page.
func Wrap(page playwright.Page, timeout time.Duration) *Page {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Page{page: page, timeout: timeout}
}

// Raw exposes the underlying Playwright page.
func (p *Page) Raw() playwright.Page { return p.page }

// Close closes the page and, when the page owns one, its browser context.
func (p *Page) Close() error {
	if p.bctx != nil {
		return p.bctx.Close()
	}
	return p.page.Close()
}

func (p *Page) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   budget(ctx, p.timeout),
	})
	if err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

func (p *Page) URL() string { return p.page.URL() }

func (p *Page) ByRole(role uidriver.Role, name *regexp.Regexp) uidriver.Element {
	opts := playwright.PageGetByRoleOptions{}
	if name != nil {
		opts.Name = name
	}
	return p.element(p.page.GetByRole(playwright.AriaRole(role), opts), describeRole(role, name))
}

func (p *Page) ByPlaceholder(placeholder *regexp.Regexp) uidriver.Element {
	return p.element(p.page.GetByPlaceholder(placeholder), fmt.Sprintf("placeholder=/%s/", placeholder))
}

func (p *Page) ByText(text *regexp.Regexp) uidriver.Element {
	return p.element(p.page.GetByText(text), fmt.Sprintf("text=/%s/", text))
}

func (p *Page) Locate(selector string) uidriver.Element {
	return p.element(p.page.Locator(selector), selector)
}

func (p *Page) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = p.timeout
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: budget(wctx, timeout),
	})
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Timeout:  budget(ctx, p.timeout),
	})
}

func (p *Page) element(loc playwright.Locator, desc string) *element {
	return &element{loc: loc, desc: desc, timeout: p.timeout}
}

func describeRole(role uidriver.Role, name *regexp.Regexp) string {
	if name == nil {
		return fmt.Sprintf("role=%s", role)
	}
	return fmt.Sprintf("role=%s[name=/%s/]", role, name)
}
