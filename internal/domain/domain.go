// Package domain holds the core types shared across the intel ingestion
// and retrieval pipeline: articles, sections, jobs, and the structures
// returned by the context-pack retriever.
package domain

import "time"

// Article status values. An article moves queued -> extracted ->
// enriched. A failure in enrichment alone leaves it partial (extracted
// text and sections survive); a failure before extraction completes
// leaves it failed.
const (
	ArticleStatusQueued    = "queued"
	ArticleStatusExtracted = "extracted"
	ArticleStatusEnriched  = "enriched"
	ArticleStatusPartial   = "partial"
	ArticleStatusFailed    = "failed"
)

// Job status values.
const (
	JobStatusQueued         = "queued"
	JobStatusQueuedNoEnrich = "queued_no_enrich"
	JobStatusRunning        = "running"
	JobStatusRetry          = "retry"
	JobStatusDone           = "done"
	JobStatusFailed         = "failed"
)

// Article is the durable record for one ingested URL. Outline is
// populated once the article reaches ArticleStatusExtracted; Signals
// only once it reaches ArticleStatusEnriched.
type Article struct {
	ArticleID      string
	URL            string
	CanonicalURL   string
	Title          string
	Publisher      string
	Author         string
	PublishedAt    *time.Time
	Status         string
	Topics         []string
	Tags           []string
	Summary        string
	Signals        []Signal
	Outline        []OutlineEntry
	OutboundLinks  []string
	FetchMeta      map[string]any
	ExtractionMeta map[string]any
	EnrichmentMeta map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Section is one chunk of an article's extracted body text, produced by
// the sectioniser. SectionID is scoped to the article's current
// extraction version; it is not stable across a force re-fetch.
type Section struct {
	ArticleID string
	SectionID string
	Heading   string
	Content   string
	Blurb     string
	Rank      int
}

// IngestJob is one unit of pipeline work against an Article.
type IngestJob struct {
	JobID       string
	ArticleID   string
	URL         string
	Status      string
	Attempts    int
	Enrich      bool
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Signal is one enrichment-extracted claim/why/tradeoff triple,
// grounded in a specific section of the article it came from.
type Signal struct {
	Kind              string
	Text              string
	Why               string
	Tradeoff          string
	SectionID         string
	SupportingSnippet string
}

// OutlineEntry is one heading-level entry in an article's table of
// contents, derived from its sections.
type OutlineEntry struct {
	SectionID string
	Heading   string
	Blurb     string
	Rank      int
}

// Citation points a context-pack signal back to its source article.
type Citation struct {
	ArticleID string
	URL       string
	SectionID string
	Title     string
}

// ContextItem is one article's contribution to a context pack: its
// trimmed summary plus the signals (each carrying its own citation)
// that fit inside the caller's budget.
type ContextItem struct {
	ArticleID string
	URL       string
	Title     string
	Publisher string
	Summary   string
	Signals   []SignalWithCitation
}

// SignalWithCitation pairs a signal with the citation proving it.
type SignalWithCitation struct {
	Signal   Signal
	Citation Citation
}

// ContextPack is the full response to a /v2/context/pack request.
type ContextPack struct {
	Query      string
	Items      []ContextItem
	Confidence string
	NextAction string
	Trace      Trace
}

// Trace records how a context pack was assembled, for debugging,
// citation auditing, and the Testable Properties around budget
// compliance.
type Trace struct {
	TraceID              string
	RetrievedArticleIDs  []string
	TimingMs             TimingMs
	CandidatesConsidered int
	CandidatesIncluded   int
	CharBudget           int
	CharsUsed            int
	TopFTSScore          float64
}

// TimingMs carries the wall-clock duration of a traced operation.
type TimingMs struct {
	Total int64
}

// ArticleHit is one full-text-search result row over intel_articles.
type ArticleHit struct {
	Article Article
	Score   float64
}

// SectionHit is one full-text-search result row over intel_article_sections,
// with a ts_headline snippet whose highlight markers are stripped.
type SectionHit struct {
	SectionID string
	Snippet   string
	Rank      int
}

// Chunk is a section search hit shaped for the chunks:search endpoint.
type Chunk struct {
	SectionID string
	Snippet   string
}
