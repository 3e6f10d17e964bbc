package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestSite(t *testing.T) {
	cases := map[string]string{
		"https://www.instagram.com/nasa/":            "instagram.com",
		"https://l.instagram.com/?u=https%3A%2F%2Fx": "instagram.com",
		"https://scontent.cdninstagram.com/v/t51":    "cdninstagram.com",
		"https://example.co.uk/path":                 "example.co.uk",
		"about:blank":                                "",
		"::not a url":                                "",
	}
	for in, want := range cases {
		if got := Site(in); got != want {
			t.Errorf("Site(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSiteLimiter_SharedBucketAcrossHosts(t *testing.T) {
	l := NewSiteLimiter(0.001, 1)

	if !l.Allow("https://www.instagram.com/a/") {
		t.Fatal("first navigation should be allowed")
	}
	if l.Allow("https://instagram.com/b/") {
		t.Error("second navigation to the same site should be throttled")
	}
	if !l.Allow("https://example.com/") {
		t.Error("other sites have their own bucket")
	}
}

func TestSiteLimiter_WaitHonoursContext(t *testing.T) {
	l := NewSiteLimiter(0.001, 1)
	l.Allow("https://www.instagram.com/")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "https://www.instagram.com/next/"); err == nil {
		t.Error("expected Wait to fail once the context expires")
	}
}

func TestSiteLimiter_SetLimit(t *testing.T) {
	l := NewSiteLimiter(0.001, 1)
	l.SetLimit("instagram.com", 1000, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow("https://www.instagram.com/") {
			t.Fatalf("navigation %d should be allowed after raising the limit", i)
		}
	}
}
