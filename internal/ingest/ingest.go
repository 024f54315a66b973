// Package ingest implements the ingest_urls operation: canonicalize,
// seed the article row, and enqueue a job, once per submitted URL.
package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/lueurxax/telegram-digest-bot/internal/canon"
	"github.com/lueurxax/telegram-digest-bot/internal/domain"
	db "github.com/lueurxax/telegram-digest-bot/internal/storage"
)

// Store is the subset of the storage layer the ingest API depends on.
type Store interface {
	UpsertArticleSeed(ctx context.Context, seed db.ArticleSeed) error
	CreateIngestJob(ctx context.Context, job domain.IngestJob) error
}

// Request is the body of POST /v2/intel/ingest_urls.
type Request struct {
	URLs         []string `json:"urls"`
	Topics       []string `json:"topics,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ForceRefetch bool     `json:"force_refetch,omitempty"`
	Enrich       *bool    `json:"enrich,omitempty"`
}

// Result is one per-URL outcome. Status is "queued", "failed", or the
// reserved (never emitted) "deduped" — see IngestURLs for why
// "deduped" doesn't appear here.
type Result struct {
	URL       string `json:"url"`
	Status    string `json:"status"`
	ArticleID string `json:"article_id,omitempty"`
	JobID     string `json:"job_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Response is the body of the ingest_urls response.
type Response struct {
	Results []Result `json:"results"`
}

// IngestURLs canonicalizes, seeds, and enqueues every URL in the
// request. A malformed or empty URL produces a "failed" result for
// that entry without aborting the rest of the batch.
//
// Every successfully enqueued URL reports "queued" — even when its
// canonical form already has an article row. Whether a repeat
// submission should instead report "deduped" is an open product
// question; until it's settled, every successful enqueue reports
// "queued" to match existing behavior.
func IngestURLs(ctx context.Context, store Store, req Request) Response {
	enrich := true
	if req.Enrich != nil {
		enrich = *req.Enrich
	}

	results := make([]Result, 0, len(req.URLs))

	for _, raw := range req.URLs {
		results = append(results, ingestOne(ctx, store, raw, req.Topics, req.Tags, req.ForceRefetch, enrich))
	}

	return Response{Results: results}
}

func ingestOne(ctx context.Context, store Store, raw string, topics, tags []string, forceRefetch, enrich bool) Result {
	canonical := canon.Canonicalize(raw)

	articleID, err := canon.ArticleID(canonical)
	if err != nil {
		return Result{URL: raw, Status: "failed", Reason: err.Error()}
	}

	seed := db.ArticleSeed{
		ArticleID:   articleID,
		URL:         canonical,
		URLOriginal: raw,
		Topics:      topics,
		Tags:        tags,
		Status:      domain.ArticleStatusQueued,
		ForceReset:  forceRefetch,
	}

	if err := store.UpsertArticleSeed(ctx, seed); err != nil {
		return Result{URL: raw, Status: "failed", ArticleID: articleID, Reason: err.Error()}
	}

	jobID := uuid.NewString()

	jobStatus := domain.JobStatusQueued
	if !enrich {
		jobStatus = domain.JobStatusQueuedNoEnrich
	}

	job := domain.IngestJob{
		JobID:     jobID,
		ArticleID: articleID,
		URL:       canonical,
		Status:    jobStatus,
		Enrich:    enrich,
	}

	if err := store.CreateIngestJob(ctx, job); err != nil {
		return Result{URL: raw, Status: "failed", ArticleID: articleID, Reason: err.Error()}
	}

	return Result{URL: raw, Status: "queued", ArticleID: articleID, JobID: jobID}
}
