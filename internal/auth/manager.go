package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/engine"
)

var _ engine.SessionKeeper = (*Manager)(nil)

// Manager owns the session lifecycle for one session name: load, probe,
// invalidate, fresh login, persist. Every read-validate-rewrite cycle runs
// under the session lock.
type Manager struct {
	Store       Store
	Name        string
	Credentials Credentials
	Options     Options
	// LockDir holds the per-session lock files.
	LockDir string

	now func() time.Time
}

func NewManager(store Store, name string, creds Credentials, opts Options, lockDir string) *Manager {
	return &Manager{
		Store:       store,
		Name:        name,
		Credentials: creds,
		Options:     opts,
		LockDir:     lockDir,
		now:         time.Now,
	}
}

// Establish leaves page authenticated. A stored session is probed first; an
// expired one is deleted before exactly one fresh login is attempted.
func (m *Manager) Establish(ctx context.Context, page browser.Page) (*Session, error) {
	unlock, err := Lock(ctx, m.LockDir, m.Name)
	if err != nil {
		return nil, engine.NewError(engine.KindOf(err), "failed to lock session", err)
	}
	defer unlock()

	logger := log.With().Str("session", m.Name).Logger()

	s, err := m.Store.Load(m.Name)
	switch {
	case errors.Is(err, ErrNoSession):
		logger.Info().Msg("No stored session, logging in")
		return m.login(ctx, page, engine.KindAuthenticationFailure)
	case err != nil:
		logger.Warn().Err(err).Msg("Stored session is unreadable, discarding it")
		if err := m.Store.Delete(m.Name); err != nil {
			return nil, engine.NewError(engine.KindInternal, "failed to discard unreadable session", err)
		}
		return m.login(ctx, page, engine.KindAuthenticationFailure)
	}

	if s.Expired(m.now()) {
		logger.Info().Time("expires_at", s.ExpiresAt).Msg("Stored session has expired")
		return m.invalidateAndLogin(ctx, page)
	}

	status, err := Probe(ctx, page, s, m.Options)
	if err != nil {
		return nil, engine.NewError(engine.KindOf(err), "session probe failed", err)
	}
	if status == StatusExpired {
		return m.invalidateAndLogin(ctx, page)
	}

	logger.Info().Msg("Reusing stored session")
	return s, nil
}

// Ready is Establish for callers that only need the page authenticated.
func (m *Manager) Ready(ctx context.Context, page browser.Page) error {
	_, err := m.Establish(ctx, page)
	return err
}

// Renew replaces the session page is using. When another run already
// stored a different session since page was set up, that session is probed
// and adopted; otherwise the stored session is discarded and one fresh
// login is attempted. The navigator calls it at most once per run.
func (m *Manager) Renew(ctx context.Context, page browser.Page) error {
	unlock, err := Lock(ctx, m.LockDir, m.Name)
	if err != nil {
		return engine.NewError(engine.KindOf(err), "failed to lock session", err)
	}
	defer unlock()

	adopted, err := m.adoptRenewed(ctx, page)
	if err != nil || adopted {
		return err
	}

	_, err = m.invalidateAndLogin(ctx, page)
	return err
}

// adoptRenewed installs the stored session if it differs from the one on
// page and still probes as valid.
func (m *Manager) adoptRenewed(ctx context.Context, page browser.Page) (bool, error) {
	stored, err := m.Store.Load(m.Name)
	if err != nil || stored.Expired(m.now()) {
		return false, nil
	}
	current, err := page.Cookies(ctx)
	if err != nil || sameSession(stored, current, m.Options.RequiredCookies) {
		return false, nil
	}

	status, err := Probe(ctx, page, stored, m.Options)
	if err != nil {
		return false, engine.NewError(engine.KindOf(err), "session probe failed", err)
	}
	if status == StatusExpired {
		return false, nil
	}
	log.Info().Str("session", m.Name).Time("captured_at", stored.CapturedAt).Msg("Adopted session renewed by another run")
	return true, nil
}

// sameSession reports whether cookies carry the identifying cookies of s.
// With no required cookies every cookie of s is compared.
func sameSession(s *Session, cookies []browser.Cookie, required []string) bool {
	names := required
	if len(names) == 0 {
		for _, c := range s.Cookies {
			names = append(names, c.Name)
		}
	}
	live := &Session{Cookies: cookies}
	for _, name := range names {
		if s.value(name) != live.value(name) {
			return false
		}
	}
	return true
}

func (m *Manager) invalidateAndLogin(ctx context.Context, page browser.Page) (*Session, error) {
	if err := m.Store.Delete(m.Name); err != nil {
		return nil, engine.NewError(engine.KindInternal, "failed to invalidate session", err)
	}
	log.Info().Str("session", m.Name).Msg("Session invalidated")
	return m.login(ctx, page, engine.KindSessionExpired)
}

// login performs the single fresh login. cause is the kind reported when no
// credentials are available; a failed login is always an authentication
// failure.
func (m *Manager) login(ctx context.Context, page browser.Page, cause engine.Kind) (*Session, error) {
	if !m.Credentials.Valid() {
		msg := "no stored session and no credentials configured"
		if cause == engine.KindSessionExpired {
			msg = "session expired and no credentials configured"
		}
		return nil, engine.NewError(engine.KindAuthenticationFailure, msg, ErrMissingCredentials)
	}

	s, err := Login(ctx, page, m.Name, m.Credentials, m.Options)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, engine.NewError(engine.KindAuthenticationFailure, fmt.Sprintf("login as %s failed", m.Credentials.Username), err)
	}

	if err := m.Store.Save(s); err != nil {
		// The live browser is authenticated; only the next run pays for this.
		log.Error().Err(err).Str("session", m.Name).Msg("Failed to persist session")
	}
	return s, nil
}
