package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
	"github.com/lueurxax/telegram-digest-bot/internal/fetcher"
	db "github.com/lueurxax/telegram-digest-bot/internal/storage"
)

type fakeStore struct {
	jobs           []*domain.IngestJob
	claimIdx       int
	articles       map[string]*domain.Article
	extractedCalls []db.ExtractedFields
	enrichedCalls  []enrichedCall
	failedArticles []string
	jobUpdates     []jobUpdate
	sectionsByID   map[string][]domain.Section
}

type enrichedCall struct {
	articleID string
	summary   string
	signals   []domain.Signal
	topics    []string
	status    string
}

type jobUpdate struct {
	jobID     string
	status    string
	lastError string
}

func (f *fakeStore) ClaimNextJob(ctx context.Context) (*domain.IngestJob, error) {
	if f.claimIdx >= len(f.jobs) {
		return nil, nil
	}

	job := f.jobs[f.claimIdx]
	f.claimIdx++

	return job, nil
}

func (f *fakeStore) UpdateJobStatus(ctx context.Context, jobID, status, lastError string) error {
	f.jobUpdates = append(f.jobUpdates, jobUpdate{jobID: jobID, status: status, lastError: lastError})
	return nil
}

func (f *fakeStore) MarkArticleExtracted(ctx context.Context, articleID string, fields db.ExtractedFields) error {
	f.extractedCalls = append(f.extractedCalls, fields)
	return nil
}

func (f *fakeStore) MarkArticleEnriched(ctx context.Context, articleID, summary string, signals []domain.Signal, topics []string, outline []domain.OutlineEntry, enrichmentMeta map[string]any, status string) error {
	f.enrichedCalls = append(f.enrichedCalls, enrichedCall{articleID: articleID, summary: summary, signals: signals, topics: topics, status: status})
	return nil
}

func (f *fakeStore) MarkArticleFailed(ctx context.Context, articleID string) error {
	f.failedArticles = append(f.failedArticles, articleID)
	return nil
}

func (f *fakeStore) ReplaceSections(ctx context.Context, articleID string, sections []domain.Section) error {
	if f.sectionsByID == nil {
		f.sectionsByID = make(map[string][]domain.Section)
	}

	f.sectionsByID[articleID] = sections

	return nil
}

func (f *fakeStore) GetArticle(ctx context.Context, articleID string) (*domain.Article, error) {
	a, ok := f.articles[articleID]
	if !ok {
		return nil, db.ErrArticleNotFound
	}

	return a, nil
}

func newTestFetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Config{HostThrottle: 0})
}

func TestRunOnceReturnsFalseOnEmptyQueue(t *testing.T) {
	store := &fakeStore{}
	p := New(store, newTestFetcher(), nil, Config{}, nil)

	ok, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ok {
		t.Fatal("expected false on empty queue")
	}
}

func TestRunOnceHappyPathWithoutEnrichment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>First paragraph about testing pipelines in Go.</p>\n\n<p>Second paragraph with more detail.</p></body></html>")
	}))
	defer server.Close()

	store := &fakeStore{
		jobs: []*domain.IngestJob{
			{JobID: "job-1", ArticleID: "article-1", URL: server.URL, Enrich: false},
		},
	}

	p := New(store, newTestFetcher(), nil, Config{}, nil)

	ok, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ok {
		t.Fatal("expected true, a job was claimed")
	}

	if len(store.extractedCalls) != 1 {
		t.Fatalf("expected one MarkArticleExtracted call, got %d", len(store.extractedCalls))
	}

	if len(store.jobUpdates) != 1 || store.jobUpdates[0].status != domain.JobStatusDone {
		t.Fatalf("expected job marked done, got %+v", store.jobUpdates)
	}

	if len(store.failedArticles) != 0 {
		t.Fatalf("article should not be marked failed, got %v", store.failedArticles)
	}
}

func TestRunOnceMarksArticleAndJobFailedOnUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := &fakeStore{
		jobs: []*domain.IngestJob{
			{JobID: "job-1", ArticleID: "article-1", URL: server.URL, Enrich: true},
		},
	}

	p := New(store, newTestFetcher(), nil, Config{}, nil)

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.failedArticles) != 1 {
		t.Fatalf("expected article marked failed, got %v", store.failedArticles)
	}

	if len(store.jobUpdates) != 1 || store.jobUpdates[0].status != domain.JobStatusFailed {
		t.Fatalf("expected job marked failed, got %+v", store.jobUpdates)
	}

	if store.jobUpdates[0].lastError != "http_status_404" {
		t.Fatalf("expected http_status_404 reason, got %q", store.jobUpdates[0].lastError)
	}
}

func TestRunOnceSkipsEnrichmentWhenJobSaysNoEnrich(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>Content that never reaches the enricher.</p></body></html>")
	}))
	defer server.Close()

	store := &fakeStore{
		jobs: []*domain.IngestJob{
			{JobID: "job-1", ArticleID: "article-1", URL: server.URL, Enrich: false},
		},
	}

	p := New(store, newTestFetcher(), nil, Config{}, nil)

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.enrichedCalls) != 0 {
		t.Fatalf("expected no enrichment call, got %d", len(store.enrichedCalls))
	}
}

func TestRunOnceFailsJobOnMissingData(t *testing.T) {
	store := &fakeStore{
		jobs: []*domain.IngestJob{
			{JobID: "job-1", ArticleID: "", URL: ""},
		},
	}

	p := New(store, newTestFetcher(), nil, Config{}, nil)

	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.jobUpdates) != 1 || store.jobUpdates[0].lastError != "missing job data" {
		t.Fatalf("expected missing job data failure, got %+v", store.jobUpdates)
	}
}
