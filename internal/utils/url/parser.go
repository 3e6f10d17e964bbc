package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// accountPattern matches platform usernames: letters, digits, dot, underscore.
var accountPattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// ValidateURL checks that urlStr is an absolute http(s) URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// NormalizeAccount accepts "nasa", "@nasa" or a profile URL and returns the
// bare username.
func NormalizeAccount(input string) (string, error) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("invalid profile URL: %w", err)
		}
		s = strings.Trim(u.Path, "/")
		if i := strings.Index(s, "/"); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.TrimPrefix(s, "@")
	if !accountPattern.MatchString(s) {
		return "", fmt.Errorf("invalid account name %q", input)
	}
	return strings.ToLower(s), nil
}

// ProfileURL is the account's profile page.
func ProfileURL(base, account string) string {
	return strings.TrimRight(base, "/") + "/" + account + "/"
}

// ReelsURL is the account's media index of short videos.
func ReelsURL(base, account string) string {
	return ProfileURL(base, account) + "reels/"
}

// LoginURL is the credential login page.
func LoginURL(base string) string {
	return strings.TrimRight(base, "/") + "/accounts/login/"
}

// HomeURL is the platform landing page used to probe sessions.
func HomeURL(base string) string {
	return strings.TrimRight(base, "/") + "/"
}

// ResolveURL resolves a possibly-relative href against a base URL
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// PathHasPrefix reports whether rawURL's path starts with prefix.
func PathHasPrefix(rawURL, prefix string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(u.Path), strings.ToLower(prefix))
}

// UnderAccount reports whether rawURL is the account's profile or one of
// its tabs.
func UnderAccount(rawURL, account string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(strings.TrimSuffix(u.Path, "/"))
	a := "/" + strings.ToLower(account)
	return p == a || strings.HasPrefix(p, a+"/")
}
