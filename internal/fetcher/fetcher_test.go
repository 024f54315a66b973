package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchReturnsBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	f := New(Config{HostThrottle: time.Millisecond})

	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.HTML != "<html>hello</html>" {
		t.Errorf("unexpected body: %q", result.HTML)
	}

	if result.Headers["content-type"] != "text/html" {
		t.Errorf("expected lowercased header key, got %v", result.Headers)
	}

	if result.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", result.StatusCode)
	}
}

func TestFetchTruncatesAtMaxBytes(t *testing.T) {
	body := strings.Repeat("a", 100)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(Config{MaxBytes: 10, HostThrottle: time.Millisecond})

	result, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Truncated {
		t.Error("expected Truncated=true")
	}

	if len(result.HTML) != 10 {
		t.Errorf("expected 10 bytes, got %d", len(result.HTML))
	}
}

func TestThrottleEnforcesMinimumInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{HostThrottle: 50 * time.Millisecond})

	start := time.Now()

	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected second fetch to wait for throttle, elapsed %v", elapsed)
	}
}

func TestFetchRespectsRedirectLimit(t *testing.T) {
	var srv *httptest.Server

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/next", http.StatusFound)
	}))
	defer srv.Close()

	f := New(Config{MaxRedirects: 1, HostThrottle: time.Millisecond})

	_, err := f.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Error("expected error from redirect loop exceeding limit")
	}
}
