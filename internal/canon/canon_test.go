package canon

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "adds scheme when missing",
			in:   "example.com/Article",
			want: "https://example.com/Article",
		},
		{
			name: "lowercases scheme and host",
			in:   "HTTPS://Example.COM/path",
			want: "https://example.com/path",
		},
		{
			name: "strips default https port",
			in:   "https://example.com:443/a",
			want: "https://example.com/a",
		},
		{
			name: "strips default http port",
			in:   "http://example.com:80/a",
			want: "http://example.com/a",
		},
		{
			name: "keeps non-default port",
			in:   "https://example.com:8443/a",
			want: "https://example.com:8443/a",
		},
		{
			name: "drops trailing slash on non-root path",
			in:   "https://example.com/a/",
			want: "https://example.com/a",
		},
		{
			name: "keeps root path as slash",
			in:   "https://example.com",
			want: "https://example.com/",
		},
		{
			name: "drops tracking params and sorts the rest",
			in:   "https://example.com/a?utm_source=x&b=2&a=1",
			want: "https://example.com/a?a=1&b=2",
		},
		{
			name: "drops blank value params",
			in:   "https://example.com/a?b=&a=1",
			want: "https://example.com/a?a=1",
		},
		{
			name: "drops fragment",
			in:   "https://example.com/a#section-2",
			want: "https://example.com/a",
		},
		{
			name: "trims surrounding whitespace",
			in:   "  https://example.com/a  ",
			want: "https://example.com/a",
		},
		{
			name: "empty input yields empty output",
			in:   "",
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Canonicalize(tc.in)
			if got != tc.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	in := "https://Example.com:443/a/?utm_source=x&b=2&a=1#frag"
	once := Canonicalize(in)
	twice := Canonicalize(once)

	if once != twice {
		t.Errorf("canonicalization not idempotent: %q != %q", once, twice)
	}
}

func TestArticleID(t *testing.T) {
	id, err := ArticleID("https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id[:4] != "url_" {
		t.Errorf("expected url_ prefix, got %q", id)
	}

	if len(id) != len("url_")+64 {
		t.Errorf("expected 64 hex chars after prefix, got len %d", len(id))
	}

	again, err := ArticleID("https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id != again {
		t.Errorf("ArticleID not deterministic: %q != %q", id, again)
	}

	other, err := ArticleID("https://example.com/b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if id == other {
		t.Errorf("expected different IDs for different URLs")
	}
}

func TestArticleIDRejectsEmpty(t *testing.T) {
	if _, err := ArticleID(""); err == nil {
		t.Error("expected error for empty canonical URL")
	}
}
