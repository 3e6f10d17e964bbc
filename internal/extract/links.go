package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

// PlatformSites are the registrable domains that belong to the platform
// itself; links to them are never "external".
var PlatformSites = map[string]bool{
	"instagram.com":    true,
	"cdninstagram.com": true,
	"fbcdn.net":        true,
	"fbsbx.com":        true,
	"facebook.com":     true,
}

// site returns the registrable domain of a host.
func site(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	s, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return s
}

// IsPlatformURL reports whether rawURL points at the platform.
func IsPlatformURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return PlatformSites[site(u.Hostname())]
}

// unwrapRedirect turns the platform's outbound redirector
// (l.instagram.com/?u=<target>) into the target.
func unwrapRedirect(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if strings.EqualFold(u.Hostname(), "l.instagram.com") {
		if target := u.Query().Get("u"); target != "" {
			return target
		}
	}
	return rawURL
}

// ExternalLink normalizes href and reports whether it leaves the platform.
func ExternalLink(d *Doc, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return "", false
	}
	abs := unwrapRedirect(d.Resolve(href))
	u, err := url.Parse(abs)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", false
	}
	if IsPlatformURL(abs) {
		return "", false
	}
	return abs, true
}

// externalLinksIn collects deduplicated external links under selector.
func externalLinksIn(selector string) Strategy[[]string] {
	return Strategy[[]string]{
		Name: "links:" + selector,
		Extract: func(d *Doc) ([]string, bool) {
			var out []string
			seen := make(map[string]bool)
			d.Find(selector).Each(func(_ int, s *goquery.Selection) {
				href, _ := s.Attr("href")
				link, ok := ExternalLink(d, href)
				if !ok || seen[link] {
					return
				}
				seen[link] = true
				out = append(out, link)
			})
			return out, len(out) > 0
		},
	}
}

// embeddedLinks reads external_url and bio_links from the profile state.
func embeddedLinks() Strategy[[]string] {
	return Strategy[[]string]{
		Name: "embedded:links",
		Extract: func(d *Doc) ([]string, bool) {
			user := d.state().profileUser()
			if user == nil {
				return nil, false
			}
			var out []string
			seen := make(map[string]bool)
			add := func(v interface{}) {
				if link, ok := ExternalLink(d, display(v)); ok && !seen[link] {
					seen[link] = true
					out = append(out, link)
				}
			}
			add(user["external_url"])
			if bio, ok := user["bio_links"].([]interface{}); ok {
				for _, b := range bio {
					add(lookup(b, "url"))
				}
			}
			return out, len(out) > 0
		},
	}
}
