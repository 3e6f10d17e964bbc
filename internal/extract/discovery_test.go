package extract

import (
	"fmt"
	"strings"
	"testing"
)

const reelsIndexURL = "https://www.instagram.com/nasa/reels/"

func TestDiscoverMedia_TruncatesToLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, `<a href="/nasa/reel/code%d/">reel %d</a>`, i, i)
	}
	b.WriteString("</main></body></html>")
	d := mustDoc(t, b.String(), reelsIndexURL)

	got := DiscoverMedia(d, ReelSelectors, 5)
	if len(got) != 5 {
		t.Fatalf("expected 5 links, got %d: %v", len(got), got)
	}
	for i, link := range got {
		want := fmt.Sprintf("https://www.instagram.com/reel/code%d/", i)
		if link != want {
			t.Errorf("link %d = %s, want %s", i, link, want)
		}
	}
}

func TestDiscoverMedia_DedupesAndPrefersHigherSelectors(t *testing.T) {
	html := `<html><body>
<a href="/reel/aaa/">a</a>
<a href="https://www.instagram.com/reel/aaa/?utm_source=ig_web">a again</a>
<a href="/nasa/">profile</a>
<a href="https://example.com/reel/zzz/">elsewhere</a>
<a href="/p/bbb/?img_index=1">post</a>
<article><a href="/reel/first/">pinned</a></article>
</body></html>`
	d := mustDoc(t, html, reelsIndexURL)

	got := DiscoverMedia(d, ReelSelectors, 10)
	want := []string{
		"https://www.instagram.com/reel/first/",
		"https://www.instagram.com/reel/aaa/",
		"https://www.instagram.com/p/bbb/",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDiscoverMedia_NoLinks(t *testing.T) {
	d := mustDoc(t, `<html><body><a href="/explore/">explore</a></body></html>`, reelsIndexURL)
	if got := DiscoverMedia(d, ReelSelectors, 5); len(got) != 0 {
		t.Errorf("expected no links, got %v", got)
	}
}

func TestCanonicalMediaURL(t *testing.T) {
	d := mustDoc(t, "<html></html>", reelsIndexURL)
	cases := []struct {
		href string
		want string
		ok   bool
	}{
		{"/nasa/reel/ABC_-1/", "https://www.instagram.com/reel/ABC_-1/", true},
		{"/reels/XYZ/", "https://www.instagram.com/reel/XYZ/", true},
		{"https://www.instagram.com/p/Q1/?img_index=2", "https://www.instagram.com/p/Q1/", true},
		{"/tv/T1/", "https://www.instagram.com/p/T1/", true},
		{"/nasa/reels/", "", false},
		{"/nasa/", "", false},
		{"https://example.com/p/abc/", "", false},
	}
	for _, tc := range cases {
		got, ok := CanonicalMediaURL(d, tc.href)
		if ok != tc.ok || got != tc.want {
			t.Errorf("CanonicalMediaURL(%q) = %q, %v; want %q, %v", tc.href, got, ok, tc.want, tc.ok)
		}
	}
}
