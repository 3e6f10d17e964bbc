package urlutil

import "testing"

func TestValidate(t *testing.T) {
	valid := []string{
		"http://example.com",
		"https://www.instagram.com/",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Fatalf("expected valid, got error: %v", err)
		}
	}

	invalid := []string{"ftp://example.com", "//example.com", "http:///"}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Fatalf("expected invalid for %s", u)
		}
	}
}

func TestNormalizeAccount(t *testing.T) {
	ok := map[string]string{
		"nasa":                                  "nasa",
		"@NASA":                                 "nasa",
		" natgeo.travel ":                       "natgeo.travel",
		"https://www.instagram.com/nasa/":       "nasa",
		"https://www.instagram.com/nasa/reels/": "nasa",
		"https://instagram.com/some_user?hl=en": "some_user",
	}
	for in, want := range ok {
		got, err := NormalizeAccount(in)
		if err != nil {
			t.Errorf("NormalizeAccount(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("NormalizeAccount(%q) = %q, want %q", in, got, want)
		}
	}

	for _, in := range []string{"", "@", "has space", "../etc/passwd", "a/b"} {
		if _, err := NormalizeAccount(in); err == nil {
			t.Errorf("NormalizeAccount(%q) should fail", in)
		}
	}
}

func TestPlatformURLs(t *testing.T) {
	base := "https://www.instagram.com/"
	if got := ProfileURL(base, "nasa"); got != "https://www.instagram.com/nasa/" {
		t.Errorf("ProfileURL = %s", got)
	}
	if got := ReelsURL(base, "nasa"); got != "https://www.instagram.com/nasa/reels/" {
		t.Errorf("ReelsURL = %s", got)
	}
	if got := LoginURL(base); got != "https://www.instagram.com/accounts/login/" {
		t.Errorf("LoginURL = %s", got)
	}
	if got := HomeURL("https://www.instagram.com"); got != "https://www.instagram.com/" {
		t.Errorf("HomeURL = %s", got)
	}
}

func TestResolveURL(t *testing.T) {
	base := "https://www.instagram.com/nasa/reels/"
	cases := map[string]string{
		"/reel/abc/":            "https://www.instagram.com/reel/abc/",
		"https://example.com/x": "https://example.com/x",
		"../p/xyz/":             "https://www.instagram.com/nasa/p/xyz/",
	}
	for href, want := range cases {
		if got := ResolveURL(base, href); got != want {
			t.Errorf("ResolveURL(%q) = %q, want %q", href, got, want)
		}
	}
}

func TestPathHasPrefix(t *testing.T) {
	if !PathHasPrefix("https://www.instagram.com/accounts/login/?next=/nasa/", "/accounts/login") {
		t.Error("login path should match")
	}
	if PathHasPrefix("https://www.instagram.com/nasa/", "/accounts/login") {
		t.Error("profile path should not match")
	}
}

func TestUnderAccount(t *testing.T) {
	cases := map[string]bool{
		"https://www.instagram.com/nasa/":          true,
		"https://www.instagram.com/NASA":           true,
		"https://www.instagram.com/nasa/reels/":    true,
		"https://www.instagram.com/nasagoddard/":   false,
		"https://www.instagram.com/accounts/login": false,
		"https://www.instagram.com/":               false,
	}
	for in, want := range cases {
		if got := UnderAccount(in, "nasa"); got != want {
			t.Errorf("UnderAccount(%q) = %v, want %v", in, got, want)
		}
	}
}
