// Package browsertest provides an in-memory browser.Page for tests, in the
// spirit of net/http/httptest.
package browsertest

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/21prnv/InfluenceIq/internal/browser"
)

var (
	_ browser.Page     = (*Page)(nil)
	_ browser.Handle   = (*Handle)(nil)
	_ browser.Launcher = (*Launcher)(nil)
)

// Route is what the fake serves for a URL.
type Route struct {
	// HTML is the rendered document.
	HTML string
	// Redirect, when set, is where the browser ends up after navigating.
	// The redirect target's own Route supplies the HTML.
	Redirect string
	// Block makes Navigate hang until the caller's context is done.
	Block bool
	// Err is returned from Navigate.
	Err error
	// Expanded replaces HTML after a successful ClickText.
	Expanded string
}

// Page is a scripted browser tab.
type Page struct {
	// Resolve, if set, is consulted before the static routes with the
	// cookies currently installed.
	Resolve func(url string, cookies []browser.Cookie) (Route, bool)
	// OnClick hooks run when Click targets the selector.
	OnClick map[string]func(p *Page)

	mu          sync.Mutex
	routes      map[string]Route
	location    string
	html        string
	expanded    string
	cookies     []browser.Cookie
	navigations []string
	typed       map[string]string
	scrolls     int
	clickTexts  int
	done        chan struct{}
	closeOnce   sync.Once
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{
		OnClick:  make(map[string]func(p *Page)),
		routes:   make(map[string]Route),
		location: "about:blank",
		typed:    make(map[string]string),
		done:     make(chan struct{}),
	}
}

// Serve registers the route for url.
func (p *Page) Serve(url string, r Route) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = r
	return p
}

// Go moves the page to url without recording a navigation. OnClick hooks
// use it to simulate post-submit redirects.
func (p *Page) Go(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.land(url)
}

// AddCookies installs cookies as the platform would after login.
func (p *Page) AddCookies(cookies ...browser.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies, cookies...)
}

// HasCookie reports whether a cookie named name is installed.
func (p *Page) HasCookie(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return HasCookie(p.cookies, name)
}

// HasCookie reports whether cookies contains one named name.
func HasCookie(cookies []browser.Cookie, name string) bool {
	for _, c := range cookies {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Navigations lists every URL passed to Navigate, in order.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Typed returns what was typed into selector.
func (p *Page) Typed(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[selector]
}

// Scrolls counts ScrollBy calls.
func (p *Page) Scrolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrolls
}

// TextClicks counts successful ClickText calls.
func (p *Page) TextClicks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clickTexts
}

// Closed reports whether the owning handle released the page.
func (p *Page) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Page) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Page) route(url string) Route {
	if p.Resolve != nil {
		if r, ok := p.Resolve(url, p.cookies); ok {
			return r
		}
	}
	if r, ok := p.routes[url]; ok {
		return r
	}
	if r, ok := p.routes[strings.TrimSuffix(url, "/")]; ok {
		return r
	}
	if r, ok := p.routes[url+"/"]; ok {
		return r
	}
	return Route{HTML: "<html><head></head><body></body></html>"}
}

// land follows redirects and loads the final document. Caller holds mu.
func (p *Page) land(url string) Route {
	r := p.route(url)
	for hops := 0; r.Redirect != "" && hops < 5; hops++ {
		url = r.Redirect
		r = p.route(url)
	}
	p.location = url
	p.html = r.HTML
	p.expanded = r.Expanded
	return r
}

func (p *Page) alive(ctx context.Context) error {
	if p.Closed() {
		return browser.ErrClosed
	}
	return ctx.Err()
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.alive(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.navigations = append(p.navigations, url)
	r := p.route(url)
	if r.Block {
		p.location = url
		p.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return browser.ErrClosed
		}
	}
	if r.Err != nil {
		p.mu.Unlock()
		return r.Err
	}
	p.land(url)
	p.mu.Unlock()
	return nil
}

func (p *Page) Location(ctx context.Context) (string, error) {
	if err := p.alive(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location, nil
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := p.alive(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html, nil
}

// WaitVisible succeeds when the current document contains selector and
// otherwise waits for ctx, like a selector that never renders.
func (p *Page) WaitVisible(ctx context.Context, selector string) error {
	if err := p.alive(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	html := p.html
	p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil && doc.Find(selector).Length() > 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.done:
		return browser.ErrClosed
	}
}

func (p *Page) ScrollBy(ctx context.Context) error {
	if err := p.alive(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	return nil
}

func (p *Page) ClickText(ctx context.Context, selector, pattern string) (bool, error) {
	if err := p.alive(ctx); err != nil {
		return false, err
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html))
	if err != nil {
		return false, err
	}
	found := false
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" && len(text) <= 80 && re.MatchString(text) {
			found = true
			return false
		}
		return true
	})
	if found {
		p.clickTexts++
		if p.expanded != "" {
			p.html = p.expanded
			p.expanded = ""
		}
	}
	return found, nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	if err := p.alive(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[selector] += text
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.alive(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	hook := p.OnClick[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := p.alive(ctx); err != nil {
		return nil, err
	}
	return []byte("\x89PNG fake"), nil
}

func (p *Page) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	if err := p.alive(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.Cookie(nil), p.cookies...), nil
}

func (p *Page) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	if err := p.alive(ctx); err != nil {
		return err
	}
	p.AddCookies(cookies...)
	return nil
}

func (p *Page) ClearCookies(ctx context.Context) error {
	if err := p.alive(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = nil
	return nil
}

// Handle owns a Page and records Close.
type Handle struct {
	page   *Page
	closes atomic.Int32
}

func (h *Handle) Page() browser.Page {
	return h.page
}

func (h *Handle) Close() error {
	h.closes.Add(1)
	h.page.close()
	return nil
}

// Closed reports whether Close was called at least once.
func (h *Handle) Closed() bool {
	return h.closes.Load() > 0
}

// Launcher hands out Handles wrapping a single scripted Page.
type Launcher struct {
	Page *Page
	Err  error

	mu      sync.Mutex
	handles []*Handle
	opts    []browser.LaunchOptions
}

func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Handle, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	h := &Handle{page: l.Page}
	l.handles = append(l.handles, h)
	l.opts = append(l.opts, opts)
	return h, nil
}

// Handles lists every handle launched so far.
func (l *Launcher) Handles() []*Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Handle(nil), l.handles...)
}

// Options lists the launch options of every Launch call.
func (l *Launcher) Options() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.opts...)
}
