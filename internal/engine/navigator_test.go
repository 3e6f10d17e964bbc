package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/browser/browsertest"
)

const (
	base       = "https://www.instagram.com"
	profileURL = "https://www.instagram.com/nasa/"
	reelsURL   = "https://www.instagram.com/nasa/reels/"
	loginURL   = "https://www.instagram.com/accounts/login/"
)

const profilePage = `<html><head>
<meta name="description" content="96M Followers, 81 Following, 4,123 Posts - See Instagram photos and videos from NASA (@nasa)">
</head><body><main><header>
<img alt="nasa's profile picture" src="https://scontent.cdninstagram.com/pic.jpg">
<section><h2>nasa</h2><h1>NASA</h1><span>Exploring the universe</span></section>
</header></main></body></html>`

var markers = []string{"log in", "login", "sign in", "log in to see", "sign up"}

func testOptions() Options {
	return Options{
		BaseURL:            base,
		StepTimeout:        time.Second,
		ItemTimeout:        time.Second,
		ProfileWaitTimeout: 100 * time.Millisecond,
		ScrollIterations:   2,
		MaxMediaItems:      5,
		MaxComments:        10,
		WallMarkers:        markers,
	}
}

func reelsPage(n int) string {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<a href="/nasa/reel/r%d/"><img src="/t%d.jpg"></a>`, i, i)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}

func itemURL(i int) string {
	return fmt.Sprintf("https://www.instagram.com/reel/r%d/", i)
}

func itemPage(i int) string {
	return fmt.Sprintf(`<html><head><meta property="og:image" content="https://scontent.cdninstagram.com/r%d.jpg"></head>
<body><article><div class="_a9zs">caption %d</div><section><span role="button">%d likes</span></section></article></body></html>`, i, i, 100+i)
}

// site serves a profile with n reels.
func site(n int) *browsertest.Page {
	p := browsertest.NewPage()
	p.Serve(profileURL, browsertest.Route{HTML: profilePage})
	p.Serve(reelsURL, browsertest.Route{HTML: reelsPage(n)})
	for i := 0; i < n; i++ {
		p.Serve(itemURL(i), browsertest.Route{HTML: itemPage(i)})
	}
	return p
}

type fakeKeeper struct {
	readyErr error
	renewErr error
	readies  int
	renews   int
	onRenew  func()
}

func (k *fakeKeeper) Ready(ctx context.Context, page browser.Page) error {
	k.readies++
	return k.readyErr
}

func (k *fakeKeeper) Renew(ctx context.Context, page browser.Page) error {
	k.renews++
	if k.onRenew != nil {
		k.onRenew()
	}
	return k.renewErr
}

type recorder struct {
	states []State
	items  []string
}

func (r *recorder) OnState(account string, s State) { r.states = append(r.states, s) }
func (r *recorder) OnItem(account string, index, total int, url string) {
	r.items = append(r.items, fmt.Sprintf("%d/%d %s", index, total, url))
}

func countPrefix(urls []string, prefix string) int {
	n := 0
	for _, u := range urls {
		if strings.HasPrefix(u, prefix) {
			n++
		}
	}
	return n
}

func TestNavigator_HappyPath(t *testing.T) {
	page := site(3)
	keeper := &fakeKeeper{}
	rec := &recorder{}
	nav := NewNavigator(page, keeper, nil, testOptions())
	nav.Observer = rec

	profile, media, err := nav.Run(context.Background(), "nasa")
	require.NoError(t, err)

	require.NotNil(t, profile)
	assert.Equal(t, "NASA", profile.DisplayName)
	assert.Equal(t, "96M", profile.Followers)
	require.Len(t, media, 3)
	for i, m := range media {
		assert.Equal(t, itemURL(i), m.URL)
		assert.Equal(t, fmt.Sprintf("caption %d", i), m.Caption)
		assert.Equal(t, fmt.Sprintf("%d likes", 100+i), m.Engagement)
	}

	assert.Equal(t, StateDone, nav.State())
	assert.Equal(t, 1, keeper.readies)
	assert.Zero(t, keeper.renews)
	assert.Equal(t, 2, page.Scrolls())
	assert.Equal(t, []State{
		StateStart, StateSessionReady, StateProfileLoaded, StateMediaIndexLoaded,
		StateMediaItemLoaded, StateMediaItemLoaded, StateMediaItemLoaded, StateDone,
	}, rec.states)
	assert.Equal(t, "3/3 "+itemURL(2), rec.items[2])
}

func TestNavigator_DiscoveryIsBounded(t *testing.T) {
	page := site(12)
	nav := NewNavigator(page, &fakeKeeper{}, nil, testOptions())

	_, media, err := nav.Run(context.Background(), "nasa")
	require.NoError(t, err)
	assert.Len(t, media, 5)
	assert.Equal(t, 5, countPrefix(page.Navigations(), base+"/reel/"))
}

func TestNavigator_WallPersistsAfterRenewal(t *testing.T) {
	page := site(3)
	page.Serve(profileURL, browsertest.Route{HTML: strings.Replace(profilePage, "</main>",
		`</main><div role="dialog"><span>Log in to see photos and videos from friends.</span><button>Log in</button></div>`, 1)})
	keeper := &fakeKeeper{}
	nav := NewNavigator(page, keeper, nil, testOptions())

	_, _, err := nav.Run(context.Background(), "nasa")
	require.Error(t, err)
	assert.Equal(t, KindLoginWallDetected, KindOf(err))
	assert.Equal(t, 1, keeper.renews)
	assert.Equal(t, StateLoginWallDetected, nav.State())
	assert.Equal(t, 2, countPrefix(page.Navigations(), profileURL))
	assert.Zero(t, countPrefix(page.Navigations(), reelsURL))
}

func TestNavigator_RenewalClearsWall(t *testing.T) {
	page := site(2)
	renewed := false
	page.Resolve = func(url string, _ []browser.Cookie) (browsertest.Route, bool) {
		if url == profileURL && !renewed {
			return browsertest.Route{Redirect: loginURL}, true
		}
		return browsertest.Route{}, false
	}
	keeper := &fakeKeeper{onRenew: func() { renewed = true }}
	nav := NewNavigator(page, keeper, nil, testOptions())

	profile, media, err := nav.Run(context.Background(), "nasa")
	require.NoError(t, err)
	assert.Equal(t, "NASA", profile.DisplayName)
	assert.Len(t, media, 2)
	assert.Equal(t, 1, keeper.renews)
	assert.True(t, nav.Renewed())
}

func TestNavigator_ProfileTimeoutRenewsOnce(t *testing.T) {
	page := site(1)
	page.Serve(profileURL, browsertest.Route{Block: true})
	keeper := &fakeKeeper{}
	opts := testOptions()
	opts.StepTimeout = 50 * time.Millisecond
	nav := NewNavigator(page, keeper, nil, opts)

	_, _, err := nav.Run(context.Background(), "nasa")
	require.Error(t, err)
	assert.Equal(t, KindNavigationTimeout, KindOf(err))
	assert.Equal(t, 1, keeper.renews)
}

func TestNavigator_ProfileNeverRendersRenewsOnce(t *testing.T) {
	page := site(1)
	page.Serve(profileURL, browsertest.Route{HTML: `<html><body><main><div>loading</div></main></body></html>`})
	keeper := &fakeKeeper{}
	nav := NewNavigator(page, keeper, nil, testOptions())

	_, _, err := nav.Run(context.Background(), "nasa")
	assert.Equal(t, KindNavigationTimeout, KindOf(err))
	assert.Equal(t, 1, keeper.renews)
}

func TestNavigator_RenewalFailureIsReported(t *testing.T) {
	page := site(1)
	page.Serve(profileURL, browsertest.Route{Redirect: loginURL})
	authErr := NewError(KindAuthenticationFailure, "login failed", errors.New("bad password"))
	keeper := &fakeKeeper{renewErr: authErr}
	nav := NewNavigator(page, keeper, nil, testOptions())

	_, _, err := nav.Run(context.Background(), "nasa")
	assert.Equal(t, KindAuthenticationFailure, KindOf(err))
}

func TestNavigator_TerminalProfileStates(t *testing.T) {
	cases := []struct {
		name  string
		route browsertest.Route
		want  Kind
	}{
		{
			name:  "not found",
			route: browsertest.Route{HTML: `<html><body><h2>Sorry, this page isn't available.</h2></body></html>`},
			want:  KindProfileNotFound,
		},
		{
			name:  "redirected away",
			route: browsertest.Route{Redirect: base + "/"},
			want:  KindPlatformBlocked,
		},
		{
			name:  "persistent error page",
			route: browsertest.Route{HTML: `<html><body><div>Something went wrong. There's an issue and the page could not be loaded.</div></body></html>`},
			want:  KindPlatformBlocked,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := site(1)
			page.Serve(profileURL, tc.route)
			keeper := &fakeKeeper{}
			nav := NewNavigator(page, keeper, nil, testOptions())

			_, _, err := nav.Run(context.Background(), "nasa")
			assert.Equal(t, tc.want, KindOf(err))
			assert.Zero(t, keeper.renews)
		})
	}
}

func TestNavigator_BioQuotingErrorText(t *testing.T) {
	for _, bio := range []string{
		"Something went wrong? DM us",
		"Sorry, this page isn't available in your region, try our site",
	} {
		t.Run(bio, func(t *testing.T) {
			page := site(2)
			page.Serve(profileURL, browsertest.Route{
				HTML: strings.Replace(profilePage, "Exploring the universe", bio, 1),
			})
			opts := testOptions()
			opts.ErrorPageWait = time.Minute
			nav := NewNavigator(page, &fakeKeeper{}, nil, opts)

			start := time.Now()
			profile, media, err := nav.Run(context.Background(), "nasa")
			require.NoError(t, err)
			assert.Equal(t, "NASA", profile.DisplayName)
			assert.Len(t, media, 2)
			assert.Less(t, time.Since(start), opts.ErrorPageWait)
		})
	}
}

func TestDetectErrorPage(t *testing.T) {
	cases := map[string]struct {
		html string
		want ErrorPage
	}{
		"not found":       {`<body><h2>Sorry, this page isn't available.</h2></body>`, NotFoundPage},
		"broken":          {`<body><div><span>Something went wrong</span></div></body>`, BrokenPage},
		"profile":         {profilePage, NoErrorPage},
		"script only":     {`<body><script>var m = "Something went wrong";</script><main></main></body>`, NoErrorPage},
		"long paragraph":  {`<body><div>Something went wrong ` + strings.Repeat("and then more happened ", 20) + `</div></body>`, NoErrorPage},
		"phrase mid-text": {`<body><span>Nothing here. Something went wrong</span></body>`, NoErrorPage},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectErrorPage(tc.html))
		})
	}
}

func TestNavigator_SessionFailureStopsRun(t *testing.T) {
	page := site(1)
	keeper := &fakeKeeper{readyErr: NewError(KindAuthenticationFailure, "no credentials", nil)}
	nav := NewNavigator(page, keeper, nil, testOptions())

	_, _, err := nav.Run(context.Background(), "nasa")
	assert.Equal(t, KindAuthenticationFailure, KindOf(err))
	assert.Empty(t, page.Navigations())
	assert.Equal(t, StateStart, nav.State())
}

func TestNavigator_FallsBackToProfileGrid(t *testing.T) {
	page := site(0)
	grid := strings.Replace(profilePage, "</header>",
		`</header><article><a href="/p/g1/">1</a><a href="/p/g2/">2</a></article>`, 1)
	page.Serve(profileURL, browsertest.Route{HTML: grid})
	page.Serve(base+"/p/g1/", browsertest.Route{HTML: itemPage(1)})
	page.Serve(base+"/p/g2/", browsertest.Route{HTML: itemPage(2)})
	nav := NewNavigator(page, &fakeKeeper{}, nil, testOptions())

	_, media, err := nav.Run(context.Background(), "nasa")
	require.NoError(t, err)
	require.Len(t, media, 2)
	assert.Equal(t, base+"/p/g1/", media[0].URL)
	assert.Equal(t, 4, page.Scrolls(), "both indexes are scrolled")
}

func TestNavigator_NoMediaIsNotAnError(t *testing.T) {
	page := site(0)
	nav := NewNavigator(page, &fakeKeeper{}, nil, testOptions())

	profile, media, err := nav.Run(context.Background(), "nasa")
	require.NoError(t, err)
	assert.NotNil(t, profile)
	assert.Empty(t, media)
}

func TestNavigator_ExpandsComments(t *testing.T) {
	page := site(1)
	collapsed := `<html><body><article><div class="_a9zs">caption</div>
<button>View all 12 comments</button></article></body></html>`
	expanded := `<html><body><article><div class="_a9zs">caption</div><ul>
<div><li><a href="/fan/">fan</a><span dir="auto">great shot</span></li></div>
</ul></article></body></html>`
	page.Serve(itemURL(0), browsertest.Route{HTML: collapsed, Expanded: expanded})
	nav := NewNavigator(page, &fakeKeeper{}, nil, testOptions())

	_, media, err := nav.Run(context.Background(), "nasa")
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, 1, page.TextClicks())
	require.Len(t, media[0].Comments, 1)
	assert.Equal(t, "great shot", media[0].Comments[0].Text)
}

func TestNavigator_ItemTimeoutIsFatal(t *testing.T) {
	page := site(2)
	page.Serve(itemURL(1), browsertest.Route{Block: true})
	opts := testOptions()
	opts.ItemTimeout = 50 * time.Millisecond
	nav := NewNavigator(page, &fakeKeeper{}, nil, opts)

	_, media, err := nav.Run(context.Background(), "nasa")
	assert.Equal(t, KindNavigationTimeout, KindOf(err))
	assert.Len(t, media, 1)
}
