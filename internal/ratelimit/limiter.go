// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// RateLimiter paces page navigations.
//
// Implementations key their buckets by site so that every host of the same
// platform (www., l., i.) draws from one budget.
type RateLimiter interface {
	// Wait blocks until a navigation to urlStr may proceed or ctx is done.
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a navigation to urlStr may proceed right now,
	// consuming a token if so.
	Allow(urlStr string) bool
}

// SiteLimiter is a token bucket per registrable domain. It is process-wide
// state: one instance is created at startup and shared by every run.
type SiteLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	perSite  rate.Limit
	burst    int
}

// NewSiteLimiter creates a limiter allowing navigationsPerSecond per site.
func NewSiteLimiter(navigationsPerSecond float64, burst int) *SiteLimiter {
	if navigationsPerSecond <= 0 {
		navigationsPerSecond = 0.5
	}
	if burst <= 0 {
		burst = 1
	}

	return &SiteLimiter{
		limiters: make(map[string]*rate.Limiter),
		perSite:  rate.Limit(navigationsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until a navigation to urlStr can proceed
func (l *SiteLimiter) Wait(ctx context.Context, urlStr string) error {
	site := Site(urlStr)
	if site == "" {
		// about:blank and friends are not paced
		return nil
	}
	return l.get(site).Wait(ctx)
}

// Allow checks if a navigation can proceed immediately without blocking
func (l *SiteLimiter) Allow(urlStr string) bool {
	site := Site(urlStr)
	if site == "" {
		return true
	}
	return l.get(site).Allow()
}

// SetLimit updates the rate for a specific site
func (l *SiteLimiter) SetLimit(site string, navigationsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[site]; ok {
		limiter.SetLimit(rate.Limit(navigationsPerSecond))
		limiter.SetBurst(burst)
		return
	}
	l.limiters[site] = rate.NewLimiter(rate.Limit(navigationsPerSecond), burst)
}

func (l *SiteLimiter) get(site string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[site]
	if !ok {
		limiter = rate.NewLimiter(l.perSite, l.burst)
		l.limiters[site] = limiter
	}
	return limiter
}

// Site returns the registrable domain (eTLD+1) of urlStr, or "" when the
// URL has no host.
func Site(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// Unlimited never blocks. Used by tests and the in-process debug mode.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context, _ string) error { return ctx.Err() }
func (Unlimited) Allow(string) bool                        { return true }
