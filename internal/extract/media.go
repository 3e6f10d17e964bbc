package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/21prnv/InfluenceIq/pkg/models"
)

// minThumbnailSide is the rendered size below which inline images are
// treated as avatars or icons.
const minThumbnailSide = 200

// thumbnailExcluded matches image URLs that are never media thumbnails.
var thumbnailExcluded = regexp.MustCompile(`(?i)profile|s150x150`)

var engagementPattern = regexp.MustCompile(`(?i)([\d.,]+\s?[KkMm]?)\s+(likes?|views?|plays?)\b`)

// `Name on Instagram: "caption text"`
var ogTitleCaption = regexp.MustCompile(`(?s)on Instagram:\s*"(.+)"`)

// Media field cascades, in priority order.
var (
	MediaURL = Cascade[string]{
		attrOf(`video[data-iq-src]`, "data-iq-src", notBlob),
		attrOf(`video[src]`, "src", notBlob),
		attrOf(`video source[src]`, "src", notBlob),
		metaOf("og:video", nil),
		metaOf("og:video:secure_url", nil),
		embeddedOf("video_url", func(s *embeddedState) interface{} {
			return s.media()["video_url"]
		}),
	}

	MediaThumbnail = Cascade[string]{
		attrOf(`video[poster]`, "poster", notBlob),
		largeImage(),
		metaOf("og:image", nil),
		embeddedOf("display_url", func(s *embeddedState) interface{} {
			return s.media()["display_url"]
		}),
	}

	MediaCaption = Cascade[string]{
		textOf(`div._a9zs`, nil),
		textOf(`div[class*="x193iq5w"] span`, nil),
		textOf(`h1 + div span`, nil),
		textOf(`article h1`, nil),
		textOf(`article div > span`, nil),
		metaMatch("og:title", ogTitleCaption),
		jsonLDOf("caption", "articleBody", "description"),
		embeddedOf("caption", func(s *embeddedState) interface{} {
			return lookup(s.media(), "edge_media_to_caption", "edges", 0, "node", "text")
		}),
	}

	MediaEngagement = Cascade[string]{
		engagementIn(`section span[role="button"]`),
		engagementIn(`section div > span`),
		engagementIn(`section div._aacl._aaco._aacw`),
		engagementIn(`section div[role="button"] span`),
		engagementIn(`section a[href*="/liked_by/"]`),
		{
			Name: "meta-description:engagement",
			Extract: func(d *Doc) (string, bool) {
				m := engagementPattern.FindString(d.metaContent("og:description"))
				if m == "" {
					m = engagementPattern.FindString(d.metaContent("description"))
				}
				return clean(m), m != ""
			},
		},
		embeddedOf("likes", func(s *embeddedState) interface{} {
			m := s.media()
			if n := display(lookup(m, "edge_media_preview_like", "count")); n != "" {
				return n + " likes"
			}
			if n := display(m["video_view_count"]); n != "" {
				return n + " views"
			}
			return nil
		}),
	}

	MediaPostedAt = Cascade[string]{
		attrOf(`time[datetime]`, "datetime", nil),
		textOf(`time`, nil),
		jsonLDOf("uploadDate", "dateCreated", "datePublished"),
		embeddedOf("taken_at_timestamp", func(s *embeddedState) interface{} {
			return s.media()["taken_at_timestamp"]
		}),
	}
)

// largeImage picks the first inline image rendered larger than
// minThumbnailSide on both axes whose URL is not excluded.
func largeImage() Strategy[string] {
	return Strategy[string]{
		Name: "large-image",
		Extract: func(d *Doc) (string, bool) {
			var out string
			d.Find(`img[src]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				src, _ := s.Attr("src")
				if src == "" || !notBlob(src) || thumbnailExcluded.MatchString(src) {
					return true
				}
				if side(s, "data-iq-width", "width") > minThumbnailSide &&
					side(s, "data-iq-height", "height") > minThumbnailSide {
					out = d.Resolve(src)
					return false
				}
				return true
			})
			return out, out != ""
		},
	}
}

// side reads a rendered dimension, falling back to the markup attribute.
func side(s *goquery.Selection, attrs ...string) int {
	for _, a := range attrs {
		if v, ok := s.Attr(a); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px")); err == nil {
				return n
			}
		}
	}
	return 0
}

// engagementIn yields the first "<count> likes|views|plays" text under
// selector, kept as displayed.
func engagementIn(selector string) Strategy[string] {
	return Strategy[string]{
		Name: "engagement:" + selector,
		Extract: func(d *Doc) (string, bool) {
			var out string
			d.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if m := engagementPattern.FindString(clean(s.Text())); m != "" {
					out = m
					return false
				}
				return true
			})
			return out, out != ""
		},
	}
}

// ExtractMedia derives one media item from a post or reel snapshot.
func ExtractMedia(d *Doc, maxComments int) models.MediaItem {
	item := models.MediaItem{
		URL:        d.URL,
		MediaURL:   MediaURL.Value(d),
		Thumbnail:  MediaThumbnail.Value(d),
		Caption:    MediaCaption.Value(d),
		Engagement: MediaEngagement.Value(d),
		PostedAt:   NormalizeDate(MediaPostedAt.Value(d)),
	}
	item.Comments = ExtractComments(d, item.Caption, maxComments)
	return item
}
