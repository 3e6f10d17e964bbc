// Package auth persists, validates and renews the platform session the
// scraper navigates with.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/21prnv/InfluenceIq/internal/browser"
)

var (
	// ErrNoSession is returned by Store.Load when nothing is stored.
	ErrNoSession = errors.New("no stored session")
	// ErrInvalidName rejects session names that are unsafe as file or key names.
	ErrInvalidName = errors.New("invalid session name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]{0,63}$`)

// ValidateName checks that name can be used as a session key.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Session is the persisted proof of authentication: the platform cookies
// captured after a login.
type Session struct {
	Name       string           `json:"name"`
	URL        string           `json:"url"`
	Cookies    []browser.Cookie `json:"cookies"`
	CapturedAt time.Time        `json:"captured_at"`
	ExpiresAt  time.Time        `json:"expires_at,omitempty"`
}

// NewSession builds a session from freshly captured cookies. ExpiresAt is
// the latest cookie expiry, as the browser would keep the session that long.
func NewSession(name, url string, cookies []browser.Cookie, capturedAt time.Time) *Session {
	s := &Session{
		Name:       name,
		URL:        url,
		Cookies:    cookies,
		CapturedAt: capturedAt,
	}
	maxExpires := 0.0
	for _, c := range cookies {
		if c.Expires > maxExpires {
			maxExpires = c.Expires
		}
	}
	if maxExpires > 0 {
		s.ExpiresAt = time.Unix(int64(maxExpires), 0)
	}
	return s
}

// Has reports whether every named cookie is present with a value.
func (s *Session) Has(names ...string) bool {
	for _, n := range names {
		found := false
		for _, c := range s.Cookies {
			if c.Name == n && c.Value != "" {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// value is the last value set for the named cookie.
func (s *Session) value(name string) string {
	v := ""
	for _, c := range s.Cookies {
		if c.Name == name {
			v = c.Value
		}
	}
	return v
}

// Missing lists the named cookies the session lacks.
func (s *Session) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if !s.Has(n) {
			out = append(out, n)
		}
	}
	return out
}

// Expired reports whether the stored expiry has passed. A session without
// an expiry only expires by probe.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists sessions by name. Save fully overwrites; Delete of a
// missing session is not an error.
type Store interface {
	Load(name string) (*Session, error)
	Save(s *Session) error
	Delete(name string) error
	List() ([]string, error)
}

// Backend names accepted by NewStore.
const (
	BackendFile    = "file"
	BackendKeyring = "keyring"
	BackendAuto    = "auto"
)

// NewStore returns the store for backend. "auto" prefers the OS keyring
// and falls back to files where no keyring is reachable (CI, Codespaces).
func NewStore(backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendKeyring:
		return NewKeyringStore(KeyringService), nil
	case BackendAuto:
		if keyringAvailable(KeyringService) {
			return NewKeyringStore(KeyringService), nil
		}
		return NewFileStore(dir)
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}

// resolveDir makes a relative session directory relative to the home
// directory.
func resolveDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, dir), nil
}
