// Package extract turns rendered page snapshots into profile and media
// records. Every field is produced by an ordered cascade of strategies; the
// first strategy that yields a non-empty value wins and an exhausted cascade
// leaves the field absent.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
)

// Doc is a parsed snapshot of one page.
type Doc struct {
	*goquery.Document
	URL string

	embeddedOnce sync.Once
	embedded     *embeddedState
	ldOnce       sync.Once
	ld           []map[string]interface{}
}

// NewDoc parses html captured at pageURL.
func NewDoc(html, pageURL string) (*Doc, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Doc{Document: doc, URL: pageURL}, nil
}

// Resolve makes href absolute against the page URL.
func (d *Doc) Resolve(href string) string {
	return urlutil.ResolveURL(d.URL, href)
}

// Strategy extracts one field one way.
type Strategy[T any] struct {
	Name    string
	Extract func(d *Doc) (T, bool)
}

// Cascade is an ordered list of strategies for one field.
type Cascade[T any] []Strategy[T]

// Apply runs strategies in order and returns the first non-empty value and
// the name of the strategy that produced it.
func (c Cascade[T]) Apply(d *Doc) (T, string, bool) {
	for _, s := range c {
		if v, ok := s.Extract(d); ok {
			return v, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

// Value is Apply without the strategy name.
func (c Cascade[T]) Value(d *Doc) T {
	v, _, _ := c.Apply(d)
	return v
}

// clean collapses whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// textOf yields the first element matching selector whose cleaned text is
// non-empty and passes accept (nil accepts everything).
func textOf(selector string, accept func(string) bool) Strategy[string] {
	return Strategy[string]{
		Name: "text:" + selector,
		Extract: func(d *Doc) (string, bool) {
			var out string
			d.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				t := clean(s.Text())
				if t != "" && (accept == nil || accept(t)) {
					out = t
					return false
				}
				return true
			})
			return out, out != ""
		},
	}
}

// attrOf yields the first non-empty attr of elements matching selector,
// resolved to an absolute URL and passing accept.
func attrOf(selector, attr string, accept func(string) bool) Strategy[string] {
	return Strategy[string]{
		Name: "attr:" + selector + "@" + attr,
		Extract: func(d *Doc) (string, bool) {
			var out string
			d.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				v, ok := s.Attr(attr)
				v = strings.TrimSpace(v)
				if !ok || v == "" {
					return true
				}
				v = d.Resolve(v)
				if accept == nil || accept(v) {
					out = v
					return false
				}
				return true
			})
			return out, out != ""
		},
	}
}

// metaContent returns the content of <meta property=name> or <meta name=name>.
func (d *Doc) metaContent(name string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, name, name)
	v, _ := d.Find(sel).First().Attr("content")
	return strings.TrimSpace(v)
}

// metaOf yields a meta tag's content.
func metaOf(name string, accept func(string) bool) Strategy[string] {
	return Strategy[string]{
		Name: "meta:" + name,
		Extract: func(d *Doc) (string, bool) {
			v := d.metaContent(name)
			if v == "" || (accept != nil && !accept(v)) {
				return "", false
			}
			return v, true
		},
	}
}

// metaMatch yields capture group 1 of re applied to a meta tag's content.
func metaMatch(name string, re *regexp.Regexp) Strategy[string] {
	return Strategy[string]{
		Name: "meta-match:" + name,
		Extract: func(d *Doc) (string, bool) {
			m := re.FindStringSubmatch(d.metaContent(name))
			if len(m) < 2 {
				return "", false
			}
			v := clean(m[1])
			return v, v != ""
		},
	}
}

// notBlob rejects blob: and data: URLs which are useless outside the tab.
func notBlob(v string) bool {
	return !strings.HasPrefix(v, "blob:") && !strings.HasPrefix(v, "data:")
}
