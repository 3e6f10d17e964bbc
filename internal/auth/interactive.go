package auth

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

// InteractiveOptions configures a manual login in a visible browser.
type InteractiveOptions struct {
	Options
	Name    string
	Timeout time.Duration
}

// InteractiveLogin opens a visible browser on the login page and waits for
// the operator to finish logging in (including any second factor), then
// captures the session.
func InteractiveLogin(ctx context.Context, launcher browser.Launcher, opts InteractiveOptions, out io.Writer) (*Session, error) {
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}

	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return nil, fmt.Errorf("interactive login requires a display server (DISPLAY not set)\n\n" +
			"💡 In headless environments (Codespaces, cloud IDEs), use:\n" +
			"   iqscrape sessions import <name>\n\n" +
			"   This allows you to import cookies from your browser's DevTools.")
	}

	log.Info().Str("session", opts.Name).Msg("Starting interactive login")

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	handle, err := launcher.Launch(ctx, browser.LaunchOptions{Headless: false})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer handle.Close()
	page := handle.Page()

	if err := page.Navigate(ctx, urlutil.LoginURL(opts.BaseURL)); err != nil {
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}

	fmt.Fprintln(out, "\n🌐 Browser opened. Please complete the login process manually.")
	fmt.Fprintf(out, "   The browser will close automatically once you're logged in (timeout %s).\n", opts.Timeout)

	if err := waitForManualLogin(ctx, page); err != nil {
		return nil, err
	}
	if err := sleep(ctx, opts.LoginSettle); err != nil {
		return nil, err
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	s := NewSession(opts.Name, urlutil.HomeURL(opts.BaseURL), cookies, time.Now())
	if missing := s.Missing(opts.RequiredCookies...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing cookies %v", ErrLoginRejected, missing)
	}

	log.Info().Int("cookie_count", len(cookies)).Msg("Cookies extracted")
	fmt.Fprintf(out, "\n✓ Successfully captured %d cookies\n", len(cookies))
	return s, nil
}

// waitForManualLogin polls until the operator has left every auth page,
// challenges included.
func waitForManualLogin(ctx context.Context, page browser.Page) error {
	ticker := time.NewTicker(loginPoll)
	defer ticker.Stop()
	for {
		loc, err := page.Location(ctx)
		if err == nil && !OnAuthPath(loc) && loc != "about:blank" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrLoginTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
