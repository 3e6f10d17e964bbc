package engine

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

// Wall paths: the login page, signup page and account checkpoints.
var wallPaths = []string{"/accounts/login", "/accounts/emailsignup", "/challenge"}

// Prompt containers are where the platform renders its authentication
// prompts. Markers in free page text (captions, bios) are ignored.
const (
	dialogSelector = `div[role="dialog"], [aria-modal="true"]`
	actionSelector = `button, div[role="button"], span[role="button"], a[href*="/accounts/login"], a[href*="/accounts/emailsignup"]`
)

// maxActionText bounds the text of an action element that may be read as a
// prompt. Longer texts are content, not calls to action.
const maxActionText = 40

// WallSignal says why a page was judged to be a login wall.
type WallSignal string

const (
	WallNone   WallSignal = ""
	WallURL    WallSignal = "url"
	WallForm   WallSignal = "login-form"
	WallDialog WallSignal = "dialog"
	WallAction WallSignal = "action"
)

// WallDetector judges whether a loaded page is an authentication wall.
type WallDetector struct {
	Markers []string
}

// Detect inspects the page URL and the rendered markup. A redirect to an
// auth path or a credential form is a wall; otherwise a marker must appear
// in a modal dialog, or be the whole label of a short action element.
func (w WallDetector) Detect(pageURL, html string) WallSignal {
	for _, p := range wallPaths {
		if urlutil.PathHasPrefix(pageURL, p) {
			return WallURL
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return WallNone
	}
	if doc.Find(`input[name="username"]`).Length() > 0 {
		return WallForm
	}

	signal := WallNone
	doc.Find(dialogSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if w.contains(strings.ToLower(s.Text())) {
			signal = WallDialog
			return false
		}
		return true
	})
	if signal != WallNone {
		return signal
	}

	doc.Find(actionSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.ToLower(strings.Join(strings.Fields(s.Text()), " "))
		if text == "" || len(text) > maxActionText {
			return true
		}
		for _, m := range w.Markers {
			if text == m || strings.HasPrefix(text, m+" ") {
				signal = WallAction
				return false
			}
		}
		return true
	})
	return signal
}

func (w WallDetector) contains(text string) bool {
	for _, m := range w.Markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
