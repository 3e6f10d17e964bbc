// internal/browser/launcher.go
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

// ChromeLauncher starts one headless Chrome per Launch call.
type ChromeLauncher struct {
	ChromePath string
	UserAgent  string
	ExtraArgs  []chromedp.ExecAllocatorOption
}

// allocatorOptions builds the exec allocator flags for a run
func (l *ChromeLauncher) allocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("mute-audio", true),
		// The platform serves a login wall to obvious automation
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(1280, 800),
	}

	if path := FindChrome(l.ChromePath); path != "" {
		allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}, allocOpts...)
	}
	if l.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(l.UserAgent))
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	return append(allocOpts, l.ExtraArgs...)
}

// Launch starts Chrome and opens a single tab. The browser dies with ctx
// or with Close, whichever comes first.
func (l *ChromeLauncher) Launch(ctx context.Context, opts LaunchOptions) (Handle, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser; it must use the tab context itself.
	if err := chromedp.Run(tabCtx, network.Enable(), chromedp.Navigate("about:blank")); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Debug().Bool("headless", opts.Headless).Bool("proxy", opts.Proxy != "").Msg("Browser started")

	h := &chromeHandle{allocCancel: allocCancel, tabCancel: tabCancel}
	h.page = &chromePage{ctx: tabCtx}
	return h, nil
}

type chromeHandle struct {
	page        *chromePage
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	once        sync.Once
}

func (h *chromeHandle) Page() Page {
	return h.page
}

// Close cancels the tab then the allocator, which kills the Chrome process.
func (h *chromeHandle) Close() error {
	h.once.Do(func() {
		h.tabCancel()
		h.allocCancel()
		log.Debug().Msg("Browser closed")
	})
	return nil
}
