// Package fetcher performs bounded, throttled HTTP GETs for the
// ingestion pipeline: a byte cap, a redirect limit, and a per-host
// minimum interval between requests.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config controls fetch limits. Zero values fall back to the defaults
// below, matching the environment-sourced defaults of the pipeline this
// fetcher serves.
type Config struct {
	MaxBytes       int64
	Timeout        time.Duration
	MaxRedirects   int
	UserAgent      string
	HostThrottle   time.Duration
}

// Default configuration values.
const (
	DefaultMaxBytes     = 2_000_000
	DefaultTimeout      = 20 * time.Second
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "context_api/1.0"
	DefaultHostThrottle = 1200 * time.Millisecond
)

// Result is the outcome of one fetch.
type Result struct {
	FinalURL   string
	StatusCode int
	Headers    map[string]string
	HTML       string
	Truncated  bool
}

// Fetcher issues throttled, bounded HTTP GET requests.
type Fetcher struct {
	client *http.Client
	cfg    Config

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds a Fetcher, filling any zero-valued Config fields with
// defaults.
func New(cfg Config) *Fetcher {
	cfg = withDefaults(cfg)

	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}

			return nil
		},
	}

	return &Fetcher{
		client:   client,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

func withDefaults(cfg Config) Config {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.HostThrottle <= 0 {
		cfg.HostThrottle = DefaultHostThrottle
	}

	return cfg
}

// Fetch performs a throttled, bounded GET against rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if err := f.throttle(ctx, rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, f.cfg.MaxBytes+1)

	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	truncated := int64(len(body)) > f.cfg.MaxBytes
	if truncated {
		body = body[:f.cfg.MaxBytes]
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[strings.ToLower(key)] = resp.Header.Get(key)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode,
		Headers:    headers,
		HTML:       strings.ToValidUTF8(string(body), "�"),
		Truncated:  truncated,
	}, nil
}

// throttle blocks, if necessary, until rawURL's host is allowed to send
// another request under its per-host rate limiter.
func (f *Fetcher) throttle(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)

	limiter := f.limiterFor(host)

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("host throttle %s: %w", host, err)
	}

	return nil
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	limiter, ok := f.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(f.cfg.HostThrottle), 1)
		f.limiters[host] = limiter
	}

	return limiter
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	return strings.ToLower(u.Host)
}
