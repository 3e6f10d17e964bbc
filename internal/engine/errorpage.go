package engine

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrorPage is the kind of placeholder the platform renders instead of a
// profile.
type ErrorPage int

const (
	NoErrorPage ErrorPage = iota
	NotFoundPage
	BrokenPage
)

// Elements that carry the platform's error message. Anything longer than
// maxErrorText is page content quoting the phrase, not the message itself.
const (
	errorContainers = `h1, h2, h3, span, div[role="alert"], div`
	maxErrorText    = 200
)

// DetectErrorPage reports whether html is one of the platform's error pages.
// A page that has rendered any part of a profile header never is, whatever
// its bio or captions say.
func DetectErrorPage(html string) ErrorPage {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return NoErrorPage
	}
	if doc.Find(profileReady).Length() > 0 {
		return NoErrorPage
	}
	doc.Find("script, style, noscript, template").Remove()

	found := NoErrorPage
	doc.Find(errorContainers).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || len(text) > maxErrorText {
			return true
		}
		switch {
		case strings.HasPrefix(text, notFoundPageText):
			found = NotFoundPage
			return false
		case strings.HasPrefix(text, errorPageText):
			found = BrokenPage
		}
		return true
	})
	return found
}
