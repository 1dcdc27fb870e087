// Package browser runs the field resolver and the flight-search page objects
// against a real browser. All tests use BrowserTestEnv via SetupBrowserTestEnv(t).
package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/kuitang/flightprobe/internal/uidriver/pwdriver"
)

const (
	// Use these timeouts for Playwright calls in tests/browser. Never introduce
	// a larger timeout value anywhere in the fixture tests.
	browserMaxTimeoutMS = 5000
	browserMaxTimeout   = 5 * time.Second
)

var browserFixtureMu sync.Mutex
var browserSharedFixture *BrowserTestEnv

// BrowserTestEnv serves the fixture site and owns the shared browser.
type BrowserTestEnv struct {
	Server  *httptest.Server
	BaseURL string

	session   *pwdriver.Session
	sessionMu sync.Mutex
}

// SetupBrowserTestEnv returns the shared fixture server, starting it on first use.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()

	if browserSharedFixture != nil {
		return browserSharedFixture
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(findTestdataDir())))
	server := httptest.NewServer(mux)
	browserSharedFixture = &BrowserTestEnv{Server: server, BaseURL: server.URL}
	return browserSharedFixture
}

// InitBrowser launches the browser named by FLIGHTPROBE_BROWSER (chromium by
// default). Skips the test in short mode or when Playwright is not available.
func (env *BrowserTestEnv) InitBrowser(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	env.sessionMu.Lock()
	defer env.sessionMu.Unlock()

	if env.session != nil {
		return
	}

	session, err := pwdriver.Launch(pwdriver.LaunchOptions{
		Browser:        os.Getenv("FLIGHTPROBE_BROWSER"),
		Headless:       true,
		DefaultTimeout: browserMaxTimeout,
	})
	if err != nil {
		t.Skip("Playwright not available:", err)
	}
	env.session = session
}

// NewPage opens a page in its own browser context, closed when the test ends.
func (env *BrowserTestEnv) NewPage(t *testing.T) *pwdriver.Page {
	t.Helper()

	page, err := env.session.NewPage(context.Background())
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	t.Cleanup(func() { _ = page.Close() })
	return page
}

// FixtureURL returns the fixture site URL with the given query parameters.
func (env *BrowserTestEnv) FixtureURL(query url.Values) string {
	u := env.BaseURL + "/flights.html"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// Navigate opens the fixture site on page.
func Navigate(t *testing.T, page *pwdriver.Page, target string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), browserMaxTimeout)
	defer cancel()
	if err := page.Goto(ctx, target); err != nil {
		t.Fatalf("failed to navigate to %s: %v", target, err)
	}
}

func findTestdataDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "testdata"
	}
	return filepath.Join(filepath.Dir(file), "testdata")
}

func cleanupSharedBrowserTestEnv() {
	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()

	if browserSharedFixture == nil {
		return
	}
	if browserSharedFixture.session != nil {
		_ = browserSharedFixture.session.Close()
	}
	browserSharedFixture.Server.Close()
	browserSharedFixture = nil
}
