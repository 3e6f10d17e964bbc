package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

// Status is the outcome of a live session probe.
type Status int

const (
	StatusValid Status = iota
	StatusExpired
)

func (s Status) String() string {
	if s == StatusValid {
		return "valid"
	}
	return "expired"
}

// Paths that mean the browser is not authenticated.
var authPaths = []string{"/accounts/login", "/accounts/emailsignup", "/challenge"}

// OnAuthPath reports whether rawURL is a login, signup or challenge page.
func OnAuthPath(rawURL string) bool {
	for _, p := range authPaths {
		if urlutil.PathHasPrefix(rawURL, p) {
			return true
		}
	}
	return false
}

// HasLoginForm reports whether html renders the credential form.
func HasLoginForm(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(`input[name="username"]`).Length() > 0 &&
		doc.Find(`input[name="password"]`).Length() > 0
}

// Options carries the platform settings login and probing need.
type Options struct {
	BaseURL         string
	RequiredCookies []string
	StepTimeout     time.Duration
	LoginTimeout    time.Duration
	LoginSettle     time.Duration
}

// Probe installs the session's cookies and loads the platform home page.
// Landing on an auth path, seeing the credential form, or losing a required
// cookie means the session is expired. Errors are navigation failures, not
// verdicts.
func Probe(ctx context.Context, page browser.Page, s *Session, opts Options) (Status, error) {
	if !s.Has(opts.RequiredCookies...) {
		return StatusExpired, nil
	}

	if err := page.ClearCookies(ctx); err != nil {
		return StatusExpired, fmt.Errorf("failed to clear cookies: %w", err)
	}
	if err := page.SetCookies(ctx, s.Cookies); err != nil {
		return StatusExpired, fmt.Errorf("failed to install session cookies: %w", err)
	}

	stepCtx, cancel := context.WithTimeout(ctx, opts.StepTimeout)
	defer cancel()

	home := urlutil.HomeURL(opts.BaseURL)
	if err := page.Navigate(stepCtx, home); err != nil {
		return StatusExpired, fmt.Errorf("failed to load %s: %w", home, err)
	}
	loc, err := page.Location(stepCtx)
	if err != nil {
		return StatusExpired, fmt.Errorf("failed to read location: %w", err)
	}

	logger := log.With().Str("session", s.Name).Str("url", loc).Logger()
	if OnAuthPath(loc) {
		logger.Info().Msg("Session probe redirected to login")
		return StatusExpired, nil
	}

	html, err := page.HTML(stepCtx)
	if err != nil {
		return StatusExpired, fmt.Errorf("failed to read page: %w", err)
	}
	if HasLoginForm(html) {
		logger.Info().Msg("Session probe rendered the login form")
		return StatusExpired, nil
	}

	cookies, err := page.Cookies(stepCtx)
	if err != nil {
		return StatusExpired, fmt.Errorf("failed to read cookies: %w", err)
	}
	live := &Session{Cookies: cookies}
	if missing := live.Missing(opts.RequiredCookies...); len(missing) > 0 {
		logger.Info().Strs("missing", missing).Msg("Platform dropped session cookies")
		return StatusExpired, nil
	}

	logger.Debug().Msg("Session is valid")
	return StatusValid, nil
}
