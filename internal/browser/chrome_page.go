package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
)

const pollInterval = 250 * time.Millisecond

const snapshotJS = `(() => {
  for (const img of document.querySelectorAll('img')) {
    img.setAttribute('data-iq-width', String(Math.round(img.width || img.naturalWidth || 0)));
    img.setAttribute('data-iq-height', String(Math.round(img.height || img.naturalHeight || 0)));
  }
  for (const v of document.querySelectorAll('video')) {
    if (v.currentSrc) v.setAttribute('data-iq-src', v.currentSrc);
  }
  return document.documentElement.outerHTML;
})()`

const visibleJS = `((sel) => {
  const el = document.querySelector(sel);
  return !!el && el.getClientRects().length > 0;
})(%s)`

const clickTextJS = `((sel, pattern) => {
  const re = new RegExp(pattern, 'i');
  for (const el of document.querySelectorAll(sel)) {
    const text = (el.textContent || '').trim();
    if (text.length > 0 && text.length <= 80 && re.test(text)) {
      el.click();
      return true;
    }
  }
  return false;
})(%s, %s)`

// chromePage drives a chromedp tab. Actions run on the tab context in a
// goroutine so a caller deadline never cancels a child of the tab context,
// which would detach the target.
type chromePage struct {
	ctx context.Context
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(p.ctx, actions...)
	}()

	select {
	case err := <-done:
		if err != nil && p.ctx.Err() != nil {
			return ErrClosed
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrClosed
	}
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.Evaluate(snapshotJS, &html))
	return html, err
}

// WaitVisible polls instead of using chromedp.WaitVisible so that a timed
// out wait does not keep a query running on the tab.
func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	script := fmt.Sprintf(visibleJS, jsString(selector))
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var visible bool
		if err := p.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
			return err
		}
		if visible {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *chromePage) ScrollBy(ctx context.Context) error {
	var scrolled bool
	return p.run(ctx, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight), true`, &scrolled))
}

func (p *chromePage) ClickText(ctx context.Context, selector, pattern string) (bool, error) {
	var clicked bool
	script := fmt.Sprintf(clickTextJS, jsString(selector), jsString(pattern))
	err := p.run(ctx, chromedp.Evaluate(script, &clicked))
	return clicked, err
}

func (p *chromePage) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx, chromedp.SendKeys(selector, text, chromedp.ByQuery))
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 yields PNG
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

func (p *chromePage) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	cookies := make([]Cookie, len(raw))
	for i, c := range raw {
		cookies[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		}
	}
	return cookies, nil
}

func (p *chromePage) SetCookies(ctx context.Context, cookies []Cookie) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.SameSite != "" {
				params = params.WithSameSite(network.CookieSameSite(c.SameSite))
			}
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				params = params.WithExpires(&exp)
			}
			if err := params.Do(ctx); err != nil {
				log.Warn().Err(err).Str("cookie", c.Name).Str("domain", c.Domain).Msg("Failed to install cookie")
			}
		}
		return nil
	}))
}

func (p *chromePage) ClearCookies(ctx context.Context) error {
	return p.run(ctx, network.ClearBrowserCookies())
}

// jsString encodes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
