// Package pipeline runs one ingestion job end to end: claim, fetch,
// extract, sectionise, persist, enrich. Each stage's success is
// persisted before the next stage runs, so a late failure never
// discards earlier work — the partial article status is the visible
// trace of that design choice.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
	"github.com/lueurxax/telegram-digest-bot/internal/enricher"
	"github.com/lueurxax/telegram-digest-bot/internal/extractor"
	"github.com/lueurxax/telegram-digest-bot/internal/fetcher"
	"github.com/lueurxax/telegram-digest-bot/internal/platform/observability"
	"github.com/lueurxax/telegram-digest-bot/internal/sectioniser"
	db "github.com/lueurxax/telegram-digest-bot/internal/storage"
)

// Store is the subset of the storage layer the pipeline depends on.
type Store interface {
	ClaimNextJob(ctx context.Context) (*domain.IngestJob, error)
	UpdateJobStatus(ctx context.Context, jobID, status, lastError string) error
	MarkArticleExtracted(ctx context.Context, articleID string, fields db.ExtractedFields) error
	MarkArticleEnriched(ctx context.Context, articleID, summary string, signals []domain.Signal, topics []string, outline []domain.OutlineEntry, enrichmentMeta map[string]any, status string) error
	MarkArticleFailed(ctx context.Context, articleID string) error
	ReplaceSections(ctx context.Context, articleID string, sections []domain.Section) error
	GetArticle(ctx context.Context, articleID string) (*domain.Article, error)
}

// Config holds the size cap threaded through extraction for one
// pipeline instance; the sectioniser uses its own fixed cap.
type Config struct {
	ExtractMaxChars int
}

// Pipeline wires the fetch/extract/sectionise/enrich stages against a
// Store. Enricher may be nil, matching a deployment with
// INTEL_ENRICH=false: jobs that ask for enrichment are then completed
// without it, with a warning logged.
type Pipeline struct {
	store    Store
	fetcher  *fetcher.Fetcher
	enricher *enricher.Enricher
	cfg      Config
	logger   *zerolog.Logger
}

// New builds a Pipeline.
func New(store Store, fetch *fetcher.Fetcher, enrich *enricher.Enricher, cfg Config, logger *zerolog.Logger) *Pipeline {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Pipeline{store: store, fetcher: fetch, enricher: enrich, cfg: cfg, logger: logger}
}

// RunOnce claims and processes a single job. It returns false when the
// queue was empty; the worker loop sleeps in that case. A job that
// fails partway still returns (true, nil) — failures are recorded on
// the job/article rows, not surfaced as a RunOnce error.
func (p *Pipeline) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.store.ClaimNextJob(ctx)
	if err != nil {
		return false, fmt.Errorf("claim next job: %w", err)
	}

	if job == nil {
		return false, nil
	}

	p.process(ctx, job)

	return true, nil
}

func (p *Pipeline) process(ctx context.Context, job *domain.IngestJob) {
	log := p.logger.With().Str("job_id", job.JobID).Str("article_id", job.ArticleID).Logger()

	if job.ArticleID == "" || job.URL == "" {
		p.fail(ctx, job, "missing job data")
		return
	}

	fetchStart := time.Now()
	fetchResult, err := p.fetcher.Fetch(ctx, job.URL)
	observability.FetchDuration.Observe(time.Since(fetchStart).Seconds())

	if err != nil {
		observability.FetchResults.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("fetch failed")
		p.fail(ctx, job, err.Error())
		p.markArticleFailed(ctx, job.ArticleID)

		return
	}

	if fetchResult.StatusCode >= 400 {
		observability.FetchResults.WithLabelValues("http_error").Inc()
		p.fail(ctx, job, fmt.Sprintf("http_status_%d", fetchResult.StatusCode))
		p.markArticleFailed(ctx, job.ArticleID)

		return
	}

	observability.FetchResults.WithLabelValues("ok").Inc()

	if fetchResult.HTML == "" {
		p.fail(ctx, job, "empty html")
		p.markArticleFailed(ctx, job.ArticleID)

		return
	}

	extractStart := time.Now()
	extracted := extractor.Extract([]byte(fetchResult.HTML), fetchResult.FinalURL, p.cfg.ExtractMaxChars)
	sections, outline := sectioniser.Sectionise(job.ArticleID, extracted.Text)
	observability.ExtractionDuration.Observe(time.Since(extractStart).Seconds())

	if extracted.Text == "" {
		p.fail(ctx, job, "empty extracted text")
		p.markArticleFailed(ctx, job.ArticleID)

		return
	}

	if err := p.store.ReplaceSections(ctx, job.ArticleID, sections); err != nil {
		log.Error().Err(err).Msg("replace sections")
		p.fail(ctx, job, err.Error())
		p.markArticleFailed(ctx, job.ArticleID)

		return
	}

	fields := db.ExtractedFields{
		Title:         extracted.Title,
		Author:        extracted.Author,
		Publisher:     publisherOf(fetchResult.FinalURL),
		PublishedAt:   extracted.PublishedAt,
		RawHTML:       fetchResult.HTML,
		ExtractedText: extracted.Text,
		HTTPStatus:    fetchResult.StatusCode,
		ContentType:   fetchResult.Headers["content-type"],
		ETag:          fetchResult.Headers["etag"],
		LastModified:  fetchResult.Headers["last-modified"],
		FetchMeta: map[string]any{
			"final_url": fetchResult.FinalURL,
			"truncated": fetchResult.Truncated,
		},
		ExtractionMeta: map[string]any{
			"method":     extracted.Method,
			"confidence": extracted.Confidence,
			"warnings":   extracted.Warnings,
		},
		Outline: outlineEntries(outline),
	}

	if err := p.store.MarkArticleExtracted(ctx, job.ArticleID, fields); err != nil {
		log.Error().Err(err).Msg("mark article extracted")
		p.fail(ctx, job, err.Error())

		return
	}

	if !job.Enrich {
		p.done(ctx, job)
		return
	}

	if p.enricher == nil {
		log.Warn().Msg("enrichment requested but no enricher configured")
		p.done(ctx, job)

		return
	}

	p.enrich(ctx, job, sections, outlineEntries(outline), log)
}

func (p *Pipeline) enrich(ctx context.Context, job *domain.IngestJob, sections []domain.Section, outline []domain.OutlineEntry, log zerolog.Logger) {
	article, err := p.store.GetArticle(ctx, job.ArticleID)
	if err != nil {
		log.Error().Err(err).Msg("load article for enrichment")
		p.fail(ctx, job, err.Error())

		return
	}

	enrichStart := time.Now()
	result, _, err := p.enricher.Enrich(ctx, article.Title, article.URL, sections)
	observability.EnrichmentRequestDuration.Observe(time.Since(enrichStart).Seconds())

	if err != nil {
		if errors.Is(err, enricher.ErrCircuitBreakerOpen) {
			observability.EnrichmentCircuitBreakerOpens.Inc()
		}

		observability.EnrichmentRequests.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("enrichment failed")

		meta := map[string]any{
			"warnings": []string{"enrichment_failed"},
			"error":    err.Error(),
		}

		if markErr := p.store.MarkArticleEnriched(ctx, job.ArticleID, "", nil, article.Topics, outline, meta, domain.ArticleStatusPartial); markErr != nil {
			log.Error().Err(markErr).Msg("mark article partial")
		}

		p.fail(ctx, job, err.Error())

		return
	}

	observability.EnrichmentRequests.WithLabelValues("ok").Inc()

	// LLM-produced topics win when present; otherwise keep the seeded list.
	topics := article.Topics
	if len(result.Topics) > 0 {
		topics = result.Topics
	}

	meta := map[string]any{"prompt_version": enricher.PromptVersion}

	if err := p.store.MarkArticleEnriched(ctx, job.ArticleID, result.Summary, result.Signals, topics, outline, meta, domain.ArticleStatusEnriched); err != nil {
		log.Error().Err(err).Msg("mark article enriched")
		p.fail(ctx, job, err.Error())

		return
	}

	p.done(ctx, job)
}

func (p *Pipeline) fail(ctx context.Context, job *domain.IngestJob, reason string) {
	observability.JobsProcessed.WithLabelValues(domain.JobStatusFailed).Inc()

	if err := p.store.UpdateJobStatus(ctx, job.JobID, domain.JobStatusFailed, reason); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("update job status to failed")
	}
}

func (p *Pipeline) done(ctx context.Context, job *domain.IngestJob) {
	observability.JobsProcessed.WithLabelValues(domain.JobStatusDone).Inc()

	if err := p.store.UpdateJobStatus(ctx, job.JobID, domain.JobStatusDone, ""); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("update job status to done")
	}
}

func (p *Pipeline) markArticleFailed(ctx context.Context, articleID string) {
	if err := p.store.MarkArticleFailed(ctx, articleID); err != nil {
		p.logger.Error().Err(err).Str("article_id", articleID).Msg("mark article failed")
	}
}

func outlineEntries(outline []domain.OutlineEntry) []domain.OutlineEntry {
	if outline == nil {
		return []domain.OutlineEntry{}
	}

	return outline
}

func publisherOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	return u.Hostname()
}
