package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
	db "github.com/lueurxax/telegram-digest-bot/internal/storage"
)

type fakeStore struct {
	seeds   []db.ArticleSeed
	jobs    []domain.IngestJob
	seedErr error
}

func (f *fakeStore) UpsertArticleSeed(ctx context.Context, seed db.ArticleSeed) error {
	if f.seedErr != nil {
		return f.seedErr
	}

	f.seeds = append(f.seeds, seed)

	return nil
}

func (f *fakeStore) CreateIngestJob(ctx context.Context, job domain.IngestJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

func TestIngestURLsAlwaysReportsQueued(t *testing.T) {
	store := &fakeStore{}

	resp := IngestURLs(context.Background(), store, Request{
		URLs: []string{"http://example.com/x", "https://example.com/x/?utm_campaign=y"},
	})

	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Results))
	}

	for _, r := range resp.Results {
		if r.Status != "queued" {
			t.Fatalf("expected queued, got %q", r.Status)
		}
	}

	if resp.Results[0].ArticleID != resp.Results[1].ArticleID {
		t.Fatalf("expected identical article_id for equivalent canonical URLs, got %q vs %q",
			resp.Results[0].ArticleID, resp.Results[1].ArticleID)
	}

	if len(store.jobs) != 2 {
		t.Fatalf("expected two separate jobs created, got %d", len(store.jobs))
	}
}

func TestIngestURLsDefaultsEnrichToTrue(t *testing.T) {
	store := &fakeStore{}

	IngestURLs(context.Background(), store, Request{URLs: []string{"http://example.com"}})

	if len(store.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(store.jobs))
	}

	if store.jobs[0].Status != domain.JobStatusQueued {
		t.Fatalf("expected queued status when enrich defaults true, got %q", store.jobs[0].Status)
	}
}

func TestIngestURLsRespectsEnrichFalse(t *testing.T) {
	store := &fakeStore{}
	enrich := false

	IngestURLs(context.Background(), store, Request{URLs: []string{"http://example.com"}, Enrich: &enrich})

	if store.jobs[0].Status != domain.JobStatusQueuedNoEnrich {
		t.Fatalf("expected queued_no_enrich status, got %q", store.jobs[0].Status)
	}
}

func TestIngestURLsReportsFailedOnSeedError(t *testing.T) {
	store := &fakeStore{seedErr: errors.New("db down")}

	resp := IngestURLs(context.Background(), store, Request{URLs: []string{"http://example.com"}})

	if resp.Results[0].Status != "failed" {
		t.Fatalf("expected failed, got %q", resp.Results[0].Status)
	}

	if resp.Results[0].Reason == "" {
		t.Fatal("expected a reason to be populated")
	}
}
