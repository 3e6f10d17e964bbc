package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

var (
	ErrMissingCredentials = errors.New("username and password are required")
	// ErrLoginRejected means the platform answered the submit with an error.
	ErrLoginRejected = errors.New("login rejected")
	// ErrChallenge means the platform asked for a checkpoint or second factor.
	ErrChallenge = errors.New("login requires verification")
	// ErrLoginTimeout means the page never left the login form.
	ErrLoginTimeout = errors.New("login did not complete")
)

const (
	usernameInput = `input[name="username"]`
	passwordInput = `input[name="password"]`
	submitButton  = `button[type="submit"]`
	loginPoll     = 500 * time.Millisecond
)

// Elements the platform renders next to the form when it rejects a login.
var loginErrorSelectors = []string{`#slfErrorAlert`, `[data-testid="login-error-message"]`, `div[role="alert"]`}

// Credentials are the account the scraper logs in as.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// Login submits credentials on the login page, waits for the browser to
// leave it, and captures the resulting session. It never retries.
func Login(ctx context.Context, page browser.Page, name string, creds Credentials, opts Options) (*Session, error) {
	if !creds.Valid() {
		return nil, ErrMissingCredentials
	}
	logger := log.With().Str("session", name).Str("username", creds.Username).Logger()
	logger.Info().Msg("Logging in")

	loginURL := urlutil.LoginURL(opts.BaseURL)
	stepCtx, cancel := context.WithTimeout(ctx, opts.StepTimeout)
	defer cancel()

	if err := page.ClearCookies(stepCtx); err != nil {
		return nil, fmt.Errorf("failed to clear cookies: %w", err)
	}
	if err := page.Navigate(stepCtx, loginURL); err != nil {
		return nil, fmt.Errorf("failed to load login page: %w", err)
	}
	if err := page.WaitVisible(stepCtx, usernameInput); err != nil {
		return nil, fmt.Errorf("login form did not render: %w", err)
	}
	if err := page.Type(stepCtx, usernameInput, creds.Username); err != nil {
		return nil, fmt.Errorf("failed to enter username: %w", err)
	}
	if err := page.Type(stepCtx, passwordInput, creds.Password); err != nil {
		return nil, fmt.Errorf("failed to enter password: %w", err)
	}
	if err := page.Click(stepCtx, submitButton); err != nil {
		return nil, fmt.Errorf("failed to submit login form: %w", err)
	}

	if err := waitForLogin(ctx, page, opts.LoginTimeout); err != nil {
		return nil, err
	}

	// Cookies land shortly after the post-login navigation
	if err := sleep(ctx, opts.LoginSettle); err != nil {
		return nil, err
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	s := NewSession(name, urlutil.HomeURL(opts.BaseURL), cookies, time.Now())
	if missing := s.Missing(opts.RequiredCookies...); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing cookies %s", ErrLoginRejected, strings.Join(missing, ", "))
	}

	logger.Info().Int("cookie_count", len(cookies)).Msg("Login succeeded")
	return s, nil
}

// waitForLogin polls until the page leaves the login path. A rendered login
// error or a verification page ends the wait early.
func waitForLogin(ctx context.Context, page browser.Page, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(loginPoll)
	defer ticker.Stop()

	for {
		loc, err := page.Location(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w within %s", ErrLoginTimeout, timeout)
			}
			return fmt.Errorf("failed to read location: %w", err)
		}
		switch {
		case urlutil.PathHasPrefix(loc, "/challenge") || urlutil.PathHasPrefix(loc, "/accounts/login/two_factor"):
			return fmt.Errorf("%w at %s", ErrChallenge, loc)
		case !OnAuthPath(loc):
			return nil
		}

		if html, err := page.HTML(ctx); err == nil {
			if msg := loginError(html); msg != "" {
				return fmt.Errorf("%w: %s", ErrLoginRejected, msg)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w within %s", ErrLoginTimeout, timeout)
		case <-ticker.C:
		}
	}
}

func loginError(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, sel := range loginErrorSelectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
