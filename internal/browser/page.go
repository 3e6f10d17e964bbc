// Package browser owns the headless Chrome automation handle and exposes the
// small set of page operations the scraper needs.
package browser

import (
	"context"
	"errors"
)

// ErrClosed is returned by page operations after the handle was released.
var ErrClosed = errors.New("browser handle closed")

// Cookie is a browser cookie as captured from, or installed into, a page.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Page is a single browser tab. Every call is bounded by ctx; a call that
// outlives ctx returns ctx.Err().
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Location returns the current, post-redirect URL.
	Location(ctx context.Context) (string, error)
	// HTML returns a snapshot of the rendered document. Images carry their
	// rendered size in data-iq-width/data-iq-height and videos their
	// current source in data-iq-src.
	HTML(ctx context.Context) (string, error)
	// WaitVisible blocks until an element matching selector is rendered.
	WaitVisible(ctx context.Context, selector string) error
	// ScrollBy scrolls one viewport height down.
	ScrollBy(ctx context.Context) error
	// ClickText clicks the first element matching selector whose text
	// matches the case-insensitive pattern. It reports whether one was found.
	ClickText(ctx context.Context, selector, pattern string) (bool, error)
	// Type sends text to the element matching selector.
	Type(ctx context.Context, selector, text string) error
	// Click clicks the element matching selector.
	Click(ctx context.Context, selector string) error
	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Cookies returns every cookie in the browser.
	Cookies(ctx context.Context) ([]Cookie, error)
	// SetCookies installs cookies.
	SetCookies(ctx context.Context, cookies []Cookie) error
	// ClearCookies removes every cookie from the browser.
	ClearCookies(ctx context.Context) error
}

// Handle is the exclusively owned automation resource for one run.
// Close is idempotent and safe to call from another goroutine.
type Handle interface {
	Page() Page
	Close() error
}

// LaunchOptions are per-run browser settings.
type LaunchOptions struct {
	Proxy    string
	Headless bool
}

// Launcher starts browsers.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Handle, error)
}
