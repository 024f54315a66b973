package extractor

import (
	"strings"
	"testing"
)

func TestExtractReadabilityPath(t *testing.T) {
	html := `<html><head><title>Test Title</title>
<meta property="article:published_time" content="2026-01-09T08:00:00Z">
</head><body><article><h1>Test Title</h1><p>` + strings.Repeat("word ", 50) + `</p></article></body></html>`

	result := Extract([]byte(html), "https://example.com/a", 0)

	if result.Method != MethodReadability && result.Method != MethodDensity {
		t.Fatalf("expected readability or density method, got %q", result.Method)
	}

	if result.Text == "" {
		t.Error("expected non-empty extracted text")
	}
}

func TestExtractFallsBackOnEmptyBody(t *testing.T) {
	result := Extract([]byte(`<html><body></body></html>`), "https://example.com/a", 0)

	if result.Method != MethodFallback {
		t.Fatalf("expected fallback method for empty body, got %q", result.Method)
	}

	found := false

	for _, w := range result.Warnings {
		if w == WarningFallbackExtractor {
			found = true
		}
	}

	if !found {
		t.Error("expected fallback_extractor warning")
	}
}

func TestExtractTruncatesAtMaxChars(t *testing.T) {
	body := strings.Repeat("a ", 100)
	html := `<html><body><article><p>` + body + `</p></article></body></html>`

	result := Extract([]byte(html), "https://example.com/a", 10)

	if len(result.Text) > 10 {
		t.Errorf("expected text trimmed to 10 chars, got %d", len(result.Text))
	}

	found := false

	for _, w := range result.Warnings {
		if w == WarningTextTruncated {
			found = true
		}
	}

	if !found {
		t.Error("expected text_truncated warning")
	}
}

func TestExtractStripsScriptAndStyleInFallback(t *testing.T) {
	html := `<html><body><script>alert(1)</script><style>body{color:red}</style><p>actual content</p></body></html>`

	result := extractFallback([]byte(html))

	if strings.Contains(result.Text, "alert") {
		t.Error("expected script content stripped")
	}

	if strings.Contains(result.Text, "color:red") {
		t.Error("expected style content stripped")
	}

	if !strings.Contains(result.Text, "actual content") {
		t.Error("expected body text retained")
	}
}

func TestNormalizeLinesDropsBlanks(t *testing.T) {
	in := "line one\n\n  \nline two\n"
	out := normalizeLines(in)

	if out != "line one\nline two" {
		t.Errorf("unexpected normalization: %q", out)
	}
}
