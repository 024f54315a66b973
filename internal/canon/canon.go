// Package canon canonicalizes ingested URLs and derives a stable article
// ID from the canonical form, so the same article seen through different
// tracking-tagged links dedupes to one row.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrEmptyCanonicalURL is returned by ArticleID when given an empty string.
var ErrEmptyCanonicalURL = errors.New("canonical_url is required")

// trackingQueryKeys are dropped from the query string during
// canonicalization, regardless of value.
var trackingQueryKeys = map[string]struct{}{
	"utm_source":      {},
	"utm_medium":      {},
	"utm_campaign":    {},
	"utm_term":        {},
	"utm_content":     {},
	"utm_id":          {},
	"utm_name":        {},
	"utm_cid":         {},
	"utm_reader":      {},
	"utm_viz_id":      {},
	"utm_pubreferrer": {},
	"utm_swu":         {},
	"gclid":           {},
	"fbclid":          {},
	"mc_cid":          {},
	"mc_eid":          {},
	"ref":             {},
	"ref_src":         {},
}

// Canonicalize normalizes raw into a stable form: lowercases scheme and
// host, strips default ports, drops a trailing slash from non-root
// paths, and removes tracking and blank-value query parameters, sorting
// what remains. Returns "" for an empty or unparseable input.
func Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" {
		parsed, err = url.Parse("https://" + trimmed)
		if err != nil {
			return ""
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "" {
		scheme = "https"
	}

	host := strings.ToLower(parsed.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	}

	if scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	if path != "/" && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}

	query := canonicalQuery(parsed.RawQuery)

	out := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     path,
		RawQuery: query,
	}

	return out.String()
}

// canonicalQuery drops tracking keys and blank values, then sorts the
// remaining key/value pairs for a stable, re-encoded query string.
func canonicalQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return ""
	}

	type pair struct {
		key, value string
	}

	pairs := make([]pair, 0, len(values))

	for key, vs := range values {
		if _, tracked := trackingQueryKeys[strings.ToLower(key)]; tracked {
			continue
		}

		for _, v := range vs {
			if v == "" {
				continue
			}

			pairs = append(pairs, pair{key: key, value: v})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}

		return pairs[i].value < pairs[j].value
	})

	encoded := url.Values{}
	for _, p := range pairs {
		encoded.Add(p.key, p.value)
	}

	return encoded.Encode()
}

// ArticleID derives the stable "url_<sha256 hex>" ID used as the
// primary key for an ingested article.
func ArticleID(canonicalURL string) (string, error) {
	if canonicalURL == "" {
		return "", ErrEmptyCanonicalURL
	}

	sum := sha256.Sum256([]byte(canonicalURL))

	return "url_" + hex.EncodeToString(sum[:]), nil
}
