package newsroom

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello World", "hello-world"},
		{"  Spaces  Around  ", "spaces-around"},
		{"Already-Slugged", "already-slugged"},
		{"Symbols!@#Here", "symbols-here"},
		{"Trailing!", "trailing"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildURL(t *testing.T) {
	cases := []struct {
		base     string
		segments []string
		want     string
	}{
		{"https://example.com", []string{"unsubscribe", "tok"}, "https://example.com/unsubscribe/tok/"},
		{"https://example.com/", []string{"t", "open", "abc"}, "https://example.com/t/open/abc/"},
		{"https://example.com", nil, "https://example.com"},
	}
	for _, tc := range cases {
		if got := BuildURL(tc.base, tc.segments...); got != tc.want {
			t.Errorf("BuildURL(%q, %v) = %q, want %q", tc.base, tc.segments, got, tc.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	valid := []string{"a@b.co", "first.last@example.com", "x+tag@sub.example.org"}
	for _, e := range valid {
		if !validEmail(e) {
			t.Errorf("validEmail(%q) = false, want true", e)
		}
	}
	invalid := []string{"", "plain", "@example.com", "a@", "a b@example.com", "a@nodot"}
	for _, e := range invalid {
		if validEmail(e) {
			t.Errorf("validEmail(%q) = true, want false", e)
		}
	}
}

func TestGenerateVisitorID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if err := InitSalt(s); err != nil {
		t.Fatalf("InitSalt failed: %v", err)
	}

	a := GenerateVisitorID("198.51.100.1", "Mozilla/5.0")
	b := GenerateVisitorID("198.51.100.1", "Mozilla/5.0")
	c := GenerateVisitorID("198.51.100.2", "Mozilla/5.0")

	if a != b {
		t.Error("same IP and UA should hash to the same visitor id")
	}
	if a == c {
		t.Error("different IPs should hash to different visitor ids")
	}
	if len(a) != 16 {
		t.Errorf("visitor id length = %d, want 16", len(a))
	}
}
