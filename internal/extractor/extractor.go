// Package extractor turns raw fetched HTML into readable article text,
// falling back through three extraction strategies of decreasing
// confidence when an earlier one can't produce usable text.
package extractor

import (
	"bytes"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Method names recorded in Result.Method.
const (
	MethodReadability = "readability"
	MethodDensity     = "density"
	MethodFallback    = "fallback"
)

// WarningTextTruncated is appended to Result.Warnings when the extracted
// text exceeded MaxChars and was trimmed.
const WarningTextTruncated = "text_truncated"

// WarningFallbackExtractor is appended when no structured extractor
// could parse the document and the stdlib tag-stripping fallback ran.
const WarningFallbackExtractor = "fallback_extractor"

// DefaultMaxChars bounds extracted text length absent explicit config.
const DefaultMaxChars = 120_000

// Result is the outcome of extracting readable content from one HTML
// document.
type Result struct {
	Title       string
	Author      string
	PublishedAt *time.Time
	Text        string
	Method      string
	Confidence  float64
	Warnings    []string
}

// Extract runs the extraction cascade against html fetched from
// pageURL: go-readability first, a goquery content-density heuristic
// second, and a stdlib tag-stripping pass last. maxChars bounds the
// final text length; pass 0 to use DefaultMaxChars.
func Extract(htmlBody []byte, pageURL string, maxChars int) Result {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	result, ok := extractWithReadability(htmlBody, pageURL)
	if !ok {
		result, ok = extractWithDensity(htmlBody)
	}

	if !ok {
		result = extractFallback(htmlBody)
	}

	original := result.Text
	result.Text = trimText(result.Text, maxChars)

	if len(original) > maxChars {
		result.Warnings = append(result.Warnings, WarningTextTruncated)
	}

	return result
}

func extractWithReadability(htmlBody []byte, pageURL string) (Result, bool) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = &url.URL{}
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBody), parsed)
	if err != nil || strings.TrimSpace(article.TextContent) == "" {
		return Result{}, false
	}

	published := metaPublishedTime(htmlBody)

	return Result{
		Title:       article.Title,
		Author:      article.Byline,
		PublishedAt: published,
		Text:        normalizeLines(article.TextContent),
		Method:      MethodReadability,
		Confidence:  0.7,
	}, true
}

// metaPublishedTime looks for an article:published_time meta tag, since
// go-readability itself doesn't surface a publish date.
func metaPublishedTime(htmlBody []byte) *time.Time {
	doc, err := html.Parse(bytes.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var raw string

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if raw != "" {
			return
		}

		if n.Type == html.ElementNode && n.Data == "meta" {
			var name, content string

			for _, attr := range n.Attr {
				switch strings.ToLower(attr.Key) {
				case "name", "property":
					name = strings.ToLower(attr.Val)
				case "content":
					content = attr.Val
				}
			}

			if name == "article:published_time" || name == "og:article:published_time" {
				raw = content
			}
		}

		for c := n.FirstChild; c != nil && raw == ""; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return parsePublishedAt(raw)
}

// densitySelectors mirrors the selector list a goquery-based extractor
// tries in priority order before giving up on a structured container.
var densitySelectors = []string{
	"article",
	"main",
	".main-content",
	".entry-content",
	".post-content",
	".post-body",
	".article-body",
	"[role='main']",
	".content",
	"#content",
}

var boilerplateSelectors = []string{"script", "style", "nav", "header", "footer", "aside", "form", "noscript"}

func extractWithDensity(htmlBody []byte) (Result, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	if err != nil {
		return Result{}, false
	}

	doc.Find(strings.Join(boilerplateSelectors, ", ")).Remove()

	var container *goquery.Selection

	for _, sel := range densitySelectors {
		found := doc.Find(sel)
		if found.Length() > 0 {
			container = found.First()
			break
		}
	}

	if container == nil {
		container = doc.Find("body")
	}

	text := normalizeLines(container.Text())
	if strings.TrimSpace(text) == "" {
		return Result{}, false
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = doc.Find("meta[property='og:title']").AttrOr("content", "")
	}

	return Result{
		Title:      title,
		Text:       text,
		Method:     MethodDensity,
		Confidence: 0.5,
	}, true
}

func extractFallback(htmlBody []byte) Result {
	doc, err := html.Parse(bytes.NewReader(htmlBody))
	if err != nil {
		return Result{
			Method:     MethodFallback,
			Confidence: 0.4,
			Warnings:   []string{WarningFallbackExtractor},
		}
	}

	var (
		title string
		buf   strings.Builder
	)

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}

		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				buf.WriteString(trimmed)
				buf.WriteByte('\n')
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return Result{
		Title:      title,
		Text:       normalizeLines(buf.String()),
		Method:     MethodFallback,
		Confidence: 0.4,
		Warnings:   []string{WarningFallbackExtractor},
	}
}

// normalizeLines collapses each line to its trimmed form and drops
// blank lines, joining what remains with single newlines.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")

	out := make([]string, 0, len(lines))

	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return strings.Join(out, "\n")
}

func trimText(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}

	if len(text) <= maxChars {
		return text
	}

	return strings.TrimRight(text[:maxChars], " \t\r\n")
}

// parsePublishedAt parses a published-time string, normalizing a
// trailing "Z" to an explicit UTC offset before parsing, matching the
// original pipeline's ISO-8601 handling.
func parsePublishedAt(raw string) *time.Time {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return nil
	}

	if strings.HasSuffix(cleaned, "Z") {
		cleaned = strings.TrimSuffix(cleaned, "Z") + "+00:00"
	}

	t, err := dateparse.ParseAny(cleaned)
	if err != nil {
		return nil
	}

	return &t
}
