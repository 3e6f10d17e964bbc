package extract

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/pkg/models"
)

// Comment expansion triggers: actionable elements whose visible text asks
// for more comments. Labels nested in a button count; bare text spans do not.
const (
	expandSelector = `button, [role="button"], button span, [role="button"] span`
	expandPattern  = `(view|load|show)\b.*\bcomments?|more comments`
)

// Clicker clicks the first element matching selector whose text matches
// pattern. It reports whether anything was clicked.
type Clicker interface {
	ClickText(ctx context.Context, selector, pattern string) (bool, error)
}

// ExpandComments triggers comment expansion once and waits settle. A page
// without a trigger is not an error.
func ExpandComments(ctx context.Context, c Clicker, settle time.Duration) error {
	clicked, err := c.ClickText(ctx, expandSelector, expandPattern)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug().Err(err).Msg("Comment expansion failed, using rendered comments")
		return nil
	}
	if !clicked {
		return nil
	}
	t := time.NewTimer(settle)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CommentContainers are tried in order; the first container selector that
// yields at least one comment wins.
var CommentContainers = []string{
	`ul > div > li`,
	`ul > li`,
	`div._a9zr`,
	`ul div[role="button"]`,
}

// Comments is the comment cascade, one strategy per container selector.
var Comments = func() Cascade[[]models.Comment] {
	c := make(Cascade[[]models.Comment], 0, len(CommentContainers))
	for _, sel := range CommentContainers {
		c = append(c, commentsIn(sel))
	}
	return c
}()

func commentsIn(selector string) Strategy[[]models.Comment] {
	return Strategy[[]models.Comment]{
		Name: "comments:" + selector,
		Extract: func(d *Doc) ([]models.Comment, bool) {
			var out []models.Comment
			d.Find(selector).Each(func(_ int, s *goquery.Selection) {
				if c, ok := parseComment(s); ok {
					out = append(out, c)
				}
			})
			return out, len(out) > 0
		},
	}
}

// parseComment reads author and text out of one comment container. The
// author is the first profile link, the text the first auto-directed span
// that is not the author.
func parseComment(s *goquery.Selection) (models.Comment, bool) {
	var author string
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if strings.Contains(href, "/explore/tags/") || strings.HasPrefix(href, "#") {
			return true
		}
		if t := clean(a.Text()); t != "" && !strings.HasPrefix(t, "#") && !strings.HasPrefix(t, "@") {
			author = t
			return false
		}
		return true
	})
	if author == "" {
		return models.Comment{}, false
	}

	var text string
	s.Find(`span[dir="auto"], div._a9zs`).EachWithBreak(func(_ int, sp *goquery.Selection) bool {
		t := clean(sp.Text())
		if t != "" && t != author {
			text = t
			return false
		}
		return true
	})
	if text == "" {
		text = strings.TrimSpace(strings.TrimPrefix(clean(s.Text()), author))
	}
	if text == "" {
		return models.Comment{}, false
	}
	return models.Comment{Author: author, Text: text}, true
}

// ExtractComments applies the comment cascade, drops the caption (rendered
// as the first "comment" on posts) and duplicates, and caps the result.
func ExtractComments(d *Doc, caption string, limit int) []models.Comment {
	all := Comments.Value(d)
	var out []models.Comment
	seen := make(map[models.Comment]bool)
	for _, c := range all {
		if limit > 0 && len(out) >= limit {
			break
		}
		if caption != "" && c.Text == caption {
			continue
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
