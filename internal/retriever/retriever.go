// Package retriever assembles context packs: a budget-aware selection
// of articles, summaries, and cited signals answering a query.
package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

const (
	defaultMaxItems    = 3
	defaultTokenBudget = 800
	maxSignalsPerItem  = 3
	candidateFanout    = 5
)

// expandTriggerWords trigger an "expand_sections" next action when the
// query mentions implementation-flavored vocabulary under a medium
// confidence pack.
var expandTriggerWords = []string{
	"implement", "implementation", "detail", "details", "how", "steps",
	"code", "example", "schema", "query", "sql", "config", "configuration",
}

// Store is the subset of the storage layer the retriever depends on.
type Store interface {
	SearchArticles(ctx context.Context, query string, limit int, recencyDays int) ([]domain.ArticleHit, error)
	GetArticle(ctx context.Context, articleID string) (*domain.Article, error)
	GetSections(ctx context.Context, articleID string, sectionIDs []string) ([]domain.Section, error)
	SearchSections(ctx context.Context, articleID string, query string, limit int) ([]domain.SectionHit, error)
}

// Request is the body of POST /v2/context/pack.
type Request struct {
	Query       string   `json:"query"`
	Topics      []string `json:"topics,omitempty"`
	TokenBudget int      `json:"token_budget,omitempty"`
	RecencyDays int      `json:"recency_days,omitempty"`
	MaxItems    int      `json:"max_items,omitempty"`
}

// Retriever builds context packs against a Store.
type Retriever struct {
	store Store
}

// New builds a Retriever.
func New(store Store) *Retriever {
	return &Retriever{store: store}
}

// Pack answers a query with a budget-aware context pack.
func (r *Retriever) Pack(ctx context.Context, req Request) (*domain.ContextPack, error) {
	start := time.Now()

	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	tokenBudget := req.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = defaultTokenBudget
	}

	charBudget := tokenBudget * 4
	perItemBudget := charBudget / maxItems

	if perItemBudget < 200 {
		perItemBudget = 200
	}

	maxSummaryChars := minInt(400, int(float64(perItemBudget)*0.6))
	maxSignalChars := minInt(240, int(float64(perItemBudget)*0.4))

	hits, err := r.store.SearchArticles(ctx, req.Query, maxItems*candidateFanout, req.RecencyDays)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}

	hits = filterByTopics(hits, req.Topics)

	trace := domain.Trace{
		CandidatesConsidered: len(hits),
		CharBudget:           charBudget,
	}

	if len(hits) > 0 {
		trace.TopFTSScore = hits[0].Score
	}

	items := make([]domain.ContextItem, 0, maxItems)
	usedChars := 0
	citedSignalsInFirstItem := 0

	for _, hit := range hits {
		if len(items) >= maxItems {
			break
		}

		if hit.Article.ArticleID == "" {
			continue
		}

		signals, citedCount := buildSignals(hit.Article, maxSignalChars)
		if len(signals) == 0 {
			continue
		}

		summary := hit.Article.Summary
		itemSize := len(summary) + signalsCharCount(signals)

		if usedChars+itemSize > charBudget {
			if len(items) > 0 {
				break
			}

			trimmedMax := maxInt(80, charBudget/4)
			summary = trim(summary, trimmedMax)
			itemSize = len(summary) + signalsCharCount(signals)
		} else if len(summary) > maxSummaryChars {
			summary = trim(summary, maxSummaryChars)
			itemSize = len(summary) + signalsCharCount(signals)
		}

		item := domain.ContextItem{
			ArticleID: hit.Article.ArticleID,
			URL:       hit.Article.URL,
			Title:     hit.Article.Title,
			Publisher: hit.Article.Publisher,
			Summary:   summary,
			Signals:   signals,
		}

		if len(items) == 0 {
			citedSignalsInFirstItem = citedCount
		}

		items = append(items, item)
		usedChars += itemSize
	}

	trace.CandidatesIncluded = len(items)
	trace.CharsUsed = usedChars

	retrievedIDs := make([]string, len(items))
	for i, item := range items {
		retrievedIDs[i] = item.ArticleID
	}

	trace.TraceID = NewTraceID()
	trace.RetrievedArticleIDs = retrievedIDs
	trace.TimingMs = domain.TimingMs{Total: time.Since(start).Milliseconds()}

	confidence := classifyConfidence(trace.TopFTSScore, citedSignalsInFirstItem)
	nextAction := classifyNextAction(confidence, req.Query)

	return &domain.ContextPack{
		Query:      req.Query,
		Items:      items,
		Confidence: confidence,
		NextAction: nextAction,
		Trace:      trace,
	}, nil
}

// Outline returns an article's stored outline.
func (r *Retriever) Outline(ctx context.Context, articleID string) ([]domain.OutlineEntry, error) {
	article, err := r.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	return article.Outline, nil
}

// Sections returns the rank-ordered content of the requested sections
// (at most 8, per the endpoint's contract — callers are expected to
// enforce that cap before calling in).
func (r *Retriever) Sections(ctx context.Context, articleID string, sectionIDs []string) ([]domain.Section, error) {
	return r.store.GetSections(ctx, articleID, sectionIDs)
}

// ChunksSearch runs a section-scoped full-text search and returns
// trimmed, tag-stripped snippets.
func (r *Retriever) ChunksSearch(ctx context.Context, articleID, query string, maxChunks, maxChars int) ([]domain.Chunk, error) {
	if maxChunks <= 0 {
		maxChunks = 3
	}

	if maxChars <= 0 {
		maxChars = 600
	}

	hits, err := r.store.SearchSections(ctx, articleID, query, maxChunks)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, domain.Chunk{SectionID: h.SectionID, Snippet: trim(h.Snippet, maxChars)})
	}

	return chunks, nil
}

// NewTraceID mints a fresh trace identifier for a pack response.
func NewTraceID() string {
	return uuid.NewString()
}

func buildSignals(article domain.Article, maxSignalChars int) ([]domain.SignalWithCitation, int) {
	signals := make([]domain.SignalWithCitation, 0, maxSignalsPerItem)
	cited := 0

	for _, s := range article.Signals {
		if len(signals) >= maxSignalsPerItem {
			break
		}

		signal := domain.Signal{
			Kind:              s.Kind,
			Text:              trim(s.Text, maxSignalChars),
			Why:               trim(s.Why, maxSignalChars),
			Tradeoff:          trim(s.Tradeoff, maxSignalChars),
			SectionID:         s.SectionID,
			SupportingSnippet: trim(s.SupportingSnippet, maxSignalChars),
		}

		citation := domain.Citation{
			ArticleID: article.ArticleID,
			URL:       article.URL,
			SectionID: s.SectionID,
			Title:     article.Title,
		}

		if s.SectionID != "" {
			cited++
		}

		signals = append(signals, domain.SignalWithCitation{Signal: signal, Citation: citation})
	}

	return signals, cited
}

// signalsCharCount sums claim+why+tradeoff per spec §4.9's item_size
// formula; the supporting snippet is excluded, it's not counted toward
// the budget.
func signalsCharCount(signals []domain.SignalWithCitation) int {
	total := 0

	for _, s := range signals {
		total += len(s.Signal.Text) + len(s.Signal.Why) + len(s.Signal.Tradeoff)
	}

	return total
}

func filterByTopics(hits []domain.ArticleHit, topics []string) []domain.ArticleHit {
	if len(topics) == 0 {
		return hits
	}

	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[strings.ToLower(strings.TrimSpace(t))] = true
	}

	filtered := make([]domain.ArticleHit, 0, len(hits))

	for _, hit := range hits {
		if intersects(hit.Article.Topics, wanted) {
			filtered = append(filtered, hit)
		}
	}

	return filtered
}

func intersects(articleTopics []string, wanted map[string]bool) bool {
	for _, t := range articleTopics {
		if wanted[strings.ToLower(strings.TrimSpace(t))] {
			return true
		}
	}

	return false
}

func classifyConfidence(topScore float64, citedSignalsInFirstItem int) string {
	switch {
	case topScore < 0.05:
		return "low"
	case topScore >= 0.2 && citedSignalsInFirstItem >= 2:
		return "high"
	default:
		return "med"
	}
}

func classifyNextAction(confidence, query string) string {
	switch confidence {
	case "low":
		return "refine_query"
	case "med":
		lower := strings.ToLower(query)

		for _, word := range expandTriggerWords {
			if strings.Contains(lower, word) {
				return "expand_sections"
			}
		}

		return "proceed"
	default:
		return "proceed"
	}
}

func trim(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}

	if len(text) <= maxChars {
		return text
	}

	if maxChars <= 3 {
		return text[:maxChars]
	}

	return strings.TrimRight(text[:maxChars-3], " \t\r\n") + "..."
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
