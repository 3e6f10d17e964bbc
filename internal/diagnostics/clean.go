package diagnostics

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// keptAttrs are the attributes that survive cleaning, per element. The
// rest only add noise to a digest of a failed page.
var keptAttrs = map[string][]string{
	"a":      {"href", "title"},
	"img":    {"src", "alt"},
	"video":  {"src", "poster"},
	"input":  {"name", "type"},
	"button": {"type"},
	"div":    {"role", "aria-label"},
	"span":   {"role"},
}

// CleanHTML drops scripts, styles and most attributes from a captured page.
// Forms and buttons are kept: they are usually what blocked the run.
func CleanHTML(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, link, meta, noscript, iframe, svg, canvas").Remove()

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Nodes[0]
		keep := keptAttrs[node.Data]
		var attrs []html.Attribute
		for _, attr := range node.Attr {
			for _, k := range keep {
				if attr.Key == k {
					attrs = append(attrs, attr)
					break
				}
			}
		}
		node.Attr = attrs
	})

	out, err := doc.Html()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
