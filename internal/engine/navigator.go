package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/21prnv/InfluenceIq/internal/browser"
	"github.com/21prnv/InfluenceIq/internal/extract"
	"github.com/21prnv/InfluenceIq/internal/ratelimit"
	"github.com/21prnv/InfluenceIq/internal/reqctx"
	urlutil "github.com/21prnv/InfluenceIq/internal/utils/url"
	"github.com/21prnv/InfluenceIq/pkg/models"
)

// State is a step of a navigation run.
type State string

const (
	StateStart             State = "Start"
	StateSessionReady      State = "SessionReady"
	StateProfileLoaded     State = "ProfileLoaded"
	StateLoginWallDetected State = "LoginWallDetected"
	StateMediaIndexLoaded  State = "MediaIndexLoaded"
	StateMediaItemLoaded   State = "MediaItemLoaded"
	StateDone              State = "Done"
)

// Page texts the platform renders instead of a profile.
const (
	errorPageText    = "Something went wrong"
	notFoundPageText = "Sorry, this page isn't available"
)

// profileReady matches once any part of a profile header has rendered.
const profileReady = `header h1, header h2, header section, div[class*="x1qjc9v5"], section[class*="x1a2a7pz"], h1[class*="x1lliihq"]`

// SessionKeeper makes the page authenticated and renews the session on
// demand.
type SessionKeeper interface {
	Ready(ctx context.Context, page browser.Page) error
	Renew(ctx context.Context, page browser.Page) error
}

// Observer receives navigation progress. Calls happen on the run's
// goroutine.
type Observer interface {
	OnState(account string, state State)
	OnItem(account string, index, total int, url string)
}

// Options bounds every step of a run.
type Options struct {
	BaseURL            string
	StepTimeout        time.Duration
	ItemTimeout        time.Duration
	ProfileWaitTimeout time.Duration
	ErrorPageWait      time.Duration
	IndexSettle        time.Duration
	ItemSettle         time.Duration
	CommentSettle      time.Duration
	ScrollSettle       time.Duration
	ScrollIterations   int
	MaxMediaItems      int
	MaxComments        int
	WallMarkers        []string
}

// Navigator drives one page through a single account's profile, media
// index and media items. It is single-use and not safe for concurrent use.
type Navigator struct {
	Page     browser.Page
	Sessions SessionKeeper
	Limiter  ratelimit.RateLimiter
	Options  Options
	Observer Observer

	wall    WallDetector
	state   State
	renewed bool
	logger  zerolog.Logger
}

func NewNavigator(page browser.Page, sessions SessionKeeper, limiter ratelimit.RateLimiter, opts Options) *Navigator {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Navigator{
		Page:     page,
		Sessions: sessions,
		Limiter:  limiter,
		Options:  opts,
		wall:     WallDetector{Markers: opts.WallMarkers},
		state:    StateStart,
		logger:   log.Logger,
	}
}

// State returns the last state reached.
func (n *Navigator) State() State {
	return n.state
}

// Renewed reports whether the one-time session renewal was spent.
func (n *Navigator) Renewed() bool {
	return n.renewed
}

func (n *Navigator) enter(account string, s State) {
	n.state = s
	n.logger.Debug().Str("state", string(s)).Msg("State transition")
	if n.Observer != nil {
		n.Observer.OnState(account, s)
	}
}

// Run scrapes account and returns the profile and up to MaxMediaItems
// media items. Failures are *Error values carrying a Kind.
func (n *Navigator) Run(ctx context.Context, account string) (*models.ProfileRecord, []models.MediaItem, error) {
	n.logger = reqctx.Logger(ctx, log.Logger)
	n.enter(account, StateStart)

	if err := n.Sessions.Ready(ctx, n.Page); err != nil {
		return nil, nil, err
	}
	n.enter(account, StateSessionReady)

	profile, err := n.loadProfile(ctx, account)
	if err != nil {
		return nil, nil, err
	}

	links, err := n.loadMediaIndex(ctx, account)
	if err != nil {
		return profile, nil, err
	}

	media := make([]models.MediaItem, 0, len(links))
	for i, link := range links {
		item, err := n.loadMediaItem(ctx, account, link)
		if err != nil {
			return profile, media, err
		}
		media = append(media, item)
		n.enter(account, StateMediaItemLoaded)
		if n.Observer != nil {
			n.Observer.OnItem(account, i+1, len(links), link)
		}
	}

	n.enter(account, StateDone)
	return profile, media, nil
}

// loadProfile reaches ProfileLoaded, spending the one renewal on a wall or
// a profile timeout.
func (n *Navigator) loadProfile(ctx context.Context, account string) (*models.ProfileRecord, error) {
	for {
		profile, err := n.openProfile(ctx, account)
		if err == nil {
			return profile, nil
		}

		kind := KindOf(err)
		renewable := kind == KindLoginWallDetected || kind == KindNavigationTimeout
		if !renewable || ctx.Err() != nil {
			return nil, err
		}
		if n.renewed {
			if kind == KindLoginWallDetected {
				n.enter(account, StateLoginWallDetected)
			}
			return nil, err
		}

		n.renewed = true
		n.logger.Warn().Err(err).Msg("Profile blocked, renewing session once")
		if err := n.Sessions.Renew(ctx, n.Page); err != nil {
			return nil, err
		}
	}
}

func (n *Navigator) openProfile(ctx context.Context, account string) (*models.ProfileRecord, error) {
	profileURL := urlutil.ProfileURL(n.Options.BaseURL, account)
	if err := n.navigate(ctx, profileURL, n.Options.StepTimeout); err != nil {
		return nil, err
	}

	loc, html, err := n.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	if DetectErrorPage(html) == BrokenPage {
		n.logger.Info().Dur("wait", n.Options.ErrorPageWait).Msg("Error page, waiting for a redirect")
		if err := sleep(ctx, n.Options.ErrorPageWait); err != nil {
			return nil, err
		}
		if loc, html, err = n.snapshot(ctx); err != nil {
			return nil, err
		}
	}

	if sig := n.wall.Detect(loc, html); sig == WallURL || sig == WallForm {
		return nil, NewError(KindLoginWallDetected, "redirected to login", nil).
			WithDetail("url", loc).WithDetail("signal", string(sig))
	}
	switch DetectErrorPage(html) {
	case NotFoundPage:
		return nil, NewError(KindProfileNotFound, fmt.Sprintf("profile %s does not exist", account), nil)
	case BrokenPage:
		return nil, NewError(KindPlatformBlocked, "platform served an error page", nil).WithDetail("url", loc)
	}
	if !urlutil.UnderAccount(loc, account) {
		return nil, NewError(KindPlatformBlocked, "unexpected redirect", ErrUnexpectedURL).WithDetail("url", loc)
	}

	waitCtx, cancel := context.WithTimeout(ctx, n.Options.ProfileWaitTimeout)
	err = n.Page.WaitVisible(waitCtx, profileReady)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewError(KindNavigationTimeout, "profile did not render", err)
	}

	// Re-read: the header only renders after the first snapshot.
	if loc, html, err = n.snapshot(ctx); err != nil {
		return nil, err
	}
	n.enter(account, StateProfileLoaded)
	if sig := n.wall.Detect(loc, html); sig != WallNone {
		return nil, NewError(KindLoginWallDetected, "login wall over profile", nil).
			WithDetail("url", loc).WithDetail("signal", string(sig))
	}

	doc, err := extract.NewDoc(html, loc)
	if err != nil {
		return nil, NewError(KindInternal, "failed to parse profile page", err)
	}
	profile := extract.ExtractProfile(doc, account)
	n.logger.Info().
		Str("display_name", profile.DisplayName).
		Str("followers", profile.Followers).
		Msg("Profile extracted")
	return &profile, nil
}

// loadMediaIndex scrolls the reels tab, falling back to the profile grid,
// and returns at most MaxMediaItems distinct media links.
func (n *Navigator) loadMediaIndex(ctx context.Context, account string) ([]string, error) {
	sources := []struct {
		url       string
		selectors []string
	}{
		{urlutil.ReelsURL(n.Options.BaseURL, account), extract.ReelSelectors},
		{urlutil.ProfileURL(n.Options.BaseURL, account), extract.GridSelectors},
	}

	for _, src := range sources {
		links, err := n.scanIndex(ctx, src.url, src.selectors)
		if err != nil {
			return nil, err
		}
		if len(links) > 0 {
			n.enter(account, StateMediaIndexLoaded)
			n.logger.Info().Int("count", len(links)).Str("index", src.url).Msg("Media discovered")
			return links, nil
		}
		n.logger.Info().Str("index", src.url).Msg("No media links on index")
	}

	n.enter(account, StateMediaIndexLoaded)
	n.logger.Warn().Err(ErrNoMediaLinks).Msg("Continuing without media")
	return nil, nil
}

func (n *Navigator) scanIndex(ctx context.Context, indexURL string, selectors []string) ([]string, error) {
	if err := n.navigate(ctx, indexURL, n.Options.StepTimeout); err != nil {
		return nil, err
	}
	if err := sleep(ctx, n.Options.IndexSettle); err != nil {
		return nil, err
	}

	// Fixed effort: stop after ScrollIterations whether or not more loaded.
	for i := 0; i < n.Options.ScrollIterations; i++ {
		stepCtx, cancel := context.WithTimeout(ctx, n.Options.StepTimeout)
		err := n.Page.ScrollBy(stepCtx)
		cancel()
		if err != nil {
			return nil, n.stepError(ctx, "scroll failed", err)
		}
		if err := sleep(ctx, n.Options.ScrollSettle); err != nil {
			return nil, err
		}
	}

	loc, html, err := n.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if sig := n.wall.Detect(loc, html); sig == WallURL || sig == WallForm {
		n.state = StateLoginWallDetected
		return nil, NewError(KindLoginWallDetected, "redirected to login on media index", nil).WithDetail("url", loc)
	}

	doc, err := extract.NewDoc(html, loc)
	if err != nil {
		return nil, NewError(KindInternal, "failed to parse media index", err)
	}
	return extract.DiscoverMedia(doc, selectors, n.Options.MaxMediaItems), nil
}

func (n *Navigator) loadMediaItem(ctx context.Context, account, link string) (models.MediaItem, error) {
	if err := n.Limiter.Wait(ctx, link); err != nil {
		return models.MediaItem{}, err
	}

	itemCtx, cancel := context.WithTimeout(ctx, n.Options.ItemTimeout)
	defer cancel()

	if err := n.Page.Navigate(itemCtx, link); err != nil {
		return models.MediaItem{}, n.stepError(ctx, "media item did not load", err).WithDetail("url", link)
	}
	if err := sleep(itemCtx, n.Options.ItemSettle); err != nil {
		return models.MediaItem{}, n.stepError(ctx, "media item did not settle", err)
	}
	if err := extract.ExpandComments(itemCtx, n.Page, n.Options.CommentSettle); err != nil {
		return models.MediaItem{}, n.stepError(ctx, "comment expansion timed out", err)
	}

	loc, html, err := n.snapshot(itemCtx)
	if err != nil {
		return models.MediaItem{}, err
	}
	if sig := n.wall.Detect(loc, html); sig == WallURL || sig == WallForm {
		n.state = StateLoginWallDetected
		return models.MediaItem{}, NewError(KindLoginWallDetected, "redirected to login on media item", nil).WithDetail("url", loc)
	}

	doc, err := extract.NewDoc(html, link)
	if err != nil {
		return models.MediaItem{}, NewError(KindInternal, "failed to parse media item", err)
	}
	return extract.ExtractMedia(doc, n.Options.MaxComments), nil
}

// navigate paces and performs one navigation bounded by timeout.
func (n *Navigator) navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := n.Limiter.Wait(ctx, url); err != nil {
		return err
	}
	n.logger.Debug().Str("url", url).Msg("Navigating")

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := n.Page.Navigate(stepCtx, url); err != nil {
		return n.stepError(ctx, "navigation failed", err).WithDetail("url", url)
	}
	return nil
}

// snapshot reads the current location and rendered markup.
func (n *Navigator) snapshot(ctx context.Context) (string, string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, n.Options.StepTimeout)
	defer cancel()

	loc, err := n.Page.Location(stepCtx)
	if err != nil {
		return "", "", n.stepError(ctx, "failed to read location", err)
	}
	html, err := n.Page.HTML(stepCtx)
	if err != nil {
		return "", "", n.stepError(ctx, "failed to capture page", err)
	}
	return loc, html, nil
}

// stepError classifies a page operation failure. A step deadline is a
// navigation timeout; the run's own deadline belongs to the supervisor.
func (n *Navigator) stepError(parent context.Context, msg string, err error) *Error {
	if parent.Err() != nil {
		return NewError(KindOf(parent.Err()), msg, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindNavigationTimeout, msg, err)
	}
	if errors.Is(err, browser.ErrClosed) {
		return NewError(KindInternal, msg, err)
	}
	return NewError(KindOf(err), msg, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
