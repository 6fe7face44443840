package source

import "testing"

func TestDocLink(t *testing.T) {
	cases := []struct {
		base string
		id   string
		want string
	}{
		{"https://docs.example.com", "guides/sso.md", "https://docs.example.com/guides/sso/"},
		{"https://docs.example.com/", "index.md", "https://docs.example.com/index/"},
		{"", "guides/sso.md", ""},
	}
	for _, tc := range cases {
		if got := DocLink(tc.base, tc.id); got != tc.want {
			t.Errorf("DocLink(%q, %q) = %q, want %q", tc.base, tc.id, got, tc.want)
		}
	}
}

func TestExtractTitle(t *testing.T) {
	if got := ExtractTitle("# My Title\n\nBody", "fallback"); got != "My Title" {
		t.Errorf("expected My Title, got %q", got)
	}
	if got := ExtractTitle("no headings here", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint([]byte("content"))
	b := Fingerprint([]byte("content"))
	c := Fingerprint([]byte("different"))
	if a != b {
		t.Error("same bytes produced different fingerprints")
	}
	if a == c {
		t.Error("different bytes produced the same fingerprint")
	}
	if len(a) != 64 {
		t.Errorf("expected a sha256 hex digest, got %q", a)
	}
}
