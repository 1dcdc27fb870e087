// Package pwdriver implements the uidriver boundary on top of playwright-go.
package pwdriver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/flightprobe/internal/errs"
	"github.com/kuitang/flightprobe/internal/obs"
)

// DefaultTimeout applies to driver calls whose context carries no deadline.
const DefaultTimeout = 5 * time.Second

// LaunchOptions selects and configures the browser.
type LaunchOptions struct {
	// Browser is chromium, firefox or webkit. Empty means chromium.
	Browser        string
	Headless       bool
	DefaultTimeout time.Duration
}

// Session owns the Playwright driver process and one browser.
type Session struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	timeout time.Duration
}

// Launch starts Playwright and the requested browser. Failures are errs.Unavailable.
func Launch(opts LaunchOptions) (*Session, error) {
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "start playwright", err)
	}

	var bt playwright.BrowserType
	switch strings.ToLower(strings.TrimSpace(opts.Browser)) {
	case "", "chromium", "chrome":
		bt = pw.Chromium
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown browser %q", opts.Browser))
	}

	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "launch "+bt.Name(), err)
	}
	obs.Pkg("pwdriver").Info("browser launched", "browser", bt.Name(), "headless", opts.Headless, "version", browser.Version())
	return &Session{pw: pw, browser: browser, timeout: timeout}, nil
}

// NewPage opens a page in a fresh browser context, so pages share no cookies or storage.
func (s *Session) NewPage(ctx context.Context) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil, errs.New(errs.FailedPrecondition, "browser session is closed")
	}

	bctx, err := s.browser.NewContext()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "create browser context", err)
	}
	bctx.SetDefaultTimeout(ms(s.timeout))
	bctx.SetDefaultNavigationTimeout(ms(s.timeout))

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, errs.Wrap(errs.Unavailable, "create page", err)
	}
	return &Page{page: page, bctx: bctx, timeout: s.timeout}, nil
}

// Close shuts down the browser and the driver process.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = err
		}
		s.browser = nil
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.pw = nil
	}
	return firstErr
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// budget converts the time left before ctx's deadline into a Playwright
// timeout, using fallback when ctx has no deadline.
func budget(ctx context.Context, fallback time.Duration) *float64 {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		d = time.Until(deadline)
		if d < time.Millisecond {
			d = time.Millisecond
		}
	}
	return playwright.Float(ms(d))
}
