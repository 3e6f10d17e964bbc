package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/21prnv/InfluenceIq/internal/browser/browsertest"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

const reelURL = "https://www.instagram.com/reel/C1abc/"

const renderedReel = `<html><head>
<meta property="og:image" content="https://scontent.cdninstagram.com/og.jpg">
</head><body>
<article>
  <video poster="https://scontent.cdninstagram.com/poster.jpg"
         src="blob:https://www.instagram.com/5f1c"
         data-iq-src="https://scontent.cdninstagram.com/v.mp4"></video>
  <div class="_a9zs">Launch day!</div>
  <section><span role="button">1,234 likes</span></section>
  <time datetime="2024-03-01T12:00:00.000Z">March 1</time>
  <ul>
    <div><li><a href="/nasa/">nasa</a><span dir="auto">Launch day!</span></li></div>
    <div><li><a href="/fan1/"><img src="/a.jpg"></a><a href="/fan1/">fan1</a><span dir="auto">fan1</span><span dir="auto">Amazing</span></li></div>
    <div><li><a href="/fan2/">fan2</a><span dir="auto">Go go</span></li></div>
    <div><li><a href="/fan2/">fan2</a><span dir="auto">Go go</span></li></div>
  </ul>
</article>
</body></html>`

func TestExtractMedia_Rendered(t *testing.T) {
	d := mustDoc(t, renderedReel, reelURL)

	got := ExtractMedia(d, 10)
	want := models.MediaItem{
		URL:        reelURL,
		MediaURL:   "https://scontent.cdninstagram.com/v.mp4",
		Thumbnail:  "https://scontent.cdninstagram.com/poster.jpg",
		Caption:    "Launch day!",
		Engagement: "1,234 likes",
		PostedAt:   "2024-03-01T12:00:00Z",
		Comments: []models.Comment{
			{Author: "fan1", Text: "Amazing"},
			{Author: "fan2", Text: "Go go"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("media mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMedia_CommentCap(t *testing.T) {
	d := mustDoc(t, renderedReel, reelURL)

	got := ExtractMedia(d, 1)
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "fan1", got.Comments[0].Author)
}

func TestMediaThumbnail_Cascade(t *testing.T) {
	images := `<img src="https://scontent.cdninstagram.com/s150x150/avatar.jpg" data-iq-width="640" data-iq-height="640">
<img src="https://scontent.cdninstagram.com/profile_pic.jpg" data-iq-width="640" data-iq-height="640">
<img src="https://scontent.cdninstagram.com/small.jpg" data-iq-width="100" data-iq-height="100">
<img src="https://scontent.cdninstagram.com/big.jpg" data-iq-width="640" data-iq-height="800">`
	og := `<meta property="og:image" content="https://scontent.cdninstagram.com/og.jpg">`

	cases := []struct {
		name     string
		html     string
		want     string
		strategy string
	}{
		{
			name:     "poster",
			html:     og + `<video poster="/poster.jpg"></video>` + images,
			want:     "https://www.instagram.com/poster.jpg",
			strategy: "attr:video[poster]@poster",
		},
		{
			name:     "large image",
			html:     og + images,
			want:     "https://scontent.cdninstagram.com/big.jpg",
			strategy: "large-image",
		},
		{
			name:     "markup size",
			html:     `<img src="/wide.jpg" width="1080" height="1350">`,
			want:     "https://www.instagram.com/wide.jpg",
			strategy: "large-image",
		},
		{
			name:     "og image",
			html:     og + `<img src="/small.jpg" data-iq-width="50" data-iq-height="50">`,
			want:     "https://scontent.cdninstagram.com/og.jpg",
			strategy: "meta:og:image",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := mustDoc(t, "<html><head></head><body>"+tc.html+"</body></html>", reelURL)
			got, strategy, ok := MediaThumbnail.Apply(d)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.strategy, strategy)
		})
	}
}

func TestExtractMedia_MetadataFallbacks(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="NASA on Instagram: &#34;Liftoff from pad 39A&#34;">
<meta property="og:description" content="52K likes, 310 comments - nasa on March 1, 2024">
<meta property="og:video" content="https://scontent.cdninstagram.com/og.mp4">
<script type="application/ld+json">{"@type":"VideoObject","uploadDate":"2024-03-01T12:00:00+0000"}</script>
</head><body></body></html>`
	d := mustDoc(t, html, reelURL)

	got := ExtractMedia(d, 10)
	assert.Equal(t, "https://scontent.cdninstagram.com/og.mp4", got.MediaURL)
	assert.Equal(t, "Liftoff from pad 39A", got.Caption)
	assert.Equal(t, "52K likes", got.Engagement)
	assert.Equal(t, "2024-03-01T12:00:00Z", got.PostedAt)
	assert.Empty(t, got.Thumbnail)
	assert.Empty(t, got.Comments)
}

func TestExtractMedia_AdditionalData(t *testing.T) {
	html := `<script>window.__additionalDataLoaded('/reel/C1abc/', {"graphql":{"shortcode_media":{
  "video_url":"https://scontent.cdninstagram.com/e.mp4",
  "display_url":"https://scontent.cdninstagram.com/e.jpg",
  "taken_at_timestamp":1709294400,
  "edge_media_preview_like":{"count":77},
  "edge_media_to_caption":{"edges":[{"node":{"text":"embedded caption"}}]}
}}});</script>`
	d := mustDoc(t, html, reelURL)

	got := ExtractMedia(d, 10)
	assert.Equal(t, "https://scontent.cdninstagram.com/e.mp4", got.MediaURL)
	assert.Equal(t, "https://scontent.cdninstagram.com/e.jpg", got.Thumbnail)
	assert.Equal(t, "embedded caption", got.Caption)
	assert.Equal(t, "77 likes", got.Engagement)
	assert.Equal(t, "2024-03-01T12:00:00Z", got.PostedAt)
}

type fakeClicker struct {
	clicked bool
	err     error
	calls   int
}

func (f *fakeClicker) ClickText(ctx context.Context, selector, pattern string) (bool, error) {
	f.calls++
	return f.clicked, f.err
}

func TestExpandComments(t *testing.T) {
	t.Run("no trigger", func(t *testing.T) {
		c := &fakeClicker{}
		start := time.Now()
		require.NoError(t, ExpandComments(context.Background(), c, time.Hour))
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, 1, c.calls)
	})

	t.Run("click failure is not an error", func(t *testing.T) {
		c := &fakeClicker{err: errors.New("detached")}
		require.NoError(t, ExpandComments(context.Background(), c, time.Hour))
	})

	t.Run("waits settle after click", func(t *testing.T) {
		c := &fakeClicker{clicked: true}
		start := time.Now()
		require.NoError(t, ExpandComments(context.Background(), c, 50*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("settle honours context", func(t *testing.T) {
		c := &fakeClicker{clicked: true}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := ExpandComments(ctx, c, time.Hour)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestExpandComments_OnlyActionableElements(t *testing.T) {
	cases := map[string]struct {
		html   string
		clicks int
	}{
		"caption text":    {`<article><span>show me your comments below</span></article>`, 0},
		"plain link":      {`<article><a href="/p/x/">view comments on the site</a></article>`, 0},
		"button":          {`<article><button>View all 12 comments</button></article>`, 1},
		"role button":     {`<article><div role="button">Load more comments</div></article>`, 1},
		"label in button": {`<article><div role="button"><span>View all 3 comments</span></div></article>`, 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			page := browsertest.NewPage().Serve(reelURL, browsertest.Route{HTML: tc.html})
			require.NoError(t, page.Navigate(context.Background(), reelURL))

			require.NoError(t, ExpandComments(context.Background(), page, time.Millisecond))
			assert.Equal(t, tc.clicks, page.TextClicks())
		})
	}
}
