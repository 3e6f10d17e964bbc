package extract

import (
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// mediaPath captures the kind and code of a media permalink path, including
// the /<account>/reel/<code>/ form.
var mediaPath = regexp.MustCompile(`^/(?:[A-Za-z0-9._]+/)?(reel|reels|p|tv)/([A-Za-z0-9_-]+)`)

// ReelSelectors locate media links on the reels index, highest confidence
// first.
var ReelSelectors = []string{
	`article a[href*="/reel/"]`,
	`a[href*="/reel/"]`,
	`a[href*="/p/"]`,
	`div[role="button"] a[href*="/reel/"]`,
	`div.x1qjc9v5 a[href*="/reel/"]`,
	`div._aagw a`,
}

// GridSelectors locate post links on the profile grid.
var GridSelectors = []string{
	`article a[href*="/p/"]`,
	`a[href*="/p/"]`,
}

// CanonicalMediaURL rewrites a media link to
// https://<host>/<reel|p>/<code>/ and reports whether href is a media link.
func CanonicalMediaURL(d *Doc, href string) (string, bool) {
	u, err := url.Parse(d.Resolve(href))
	if err != nil || u.Host == "" || !IsPlatformURL(u.String()) {
		return "", false
	}
	m := mediaPath.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	kind := m[1]
	switch kind {
	case "reels":
		kind = "reel"
	case "tv":
		kind = "p"
	}
	return u.Scheme + "://" + u.Host + "/" + kind + "/" + m[2] + "/", true
}

// DiscoverMedia unions the links matched by selectors in priority order,
// deduplicates them by canonical URL, and returns at most limit of them.
func DiscoverMedia(d *Doc, selectors []string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, sel := range selectors {
		d.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			link, ok := CanonicalMediaURL(d, href)
			if !ok || seen[link] {
				return true
			}
			seen[link] = true
			out = append(out, link)
			return limit <= 0 || len(out) < limit
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
