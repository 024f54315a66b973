package retriever

import (
	"context"
	"testing"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

type fakeStore struct {
	hits     []domain.ArticleHit
	articles map[string]*domain.Article
}

func (f *fakeStore) SearchArticles(ctx context.Context, query string, limit int, recencyDays int) ([]domain.ArticleHit, error) {
	return f.hits, nil
}

func (f *fakeStore) GetArticle(ctx context.Context, articleID string) (*domain.Article, error) {
	return f.articles[articleID], nil
}

func (f *fakeStore) GetSections(ctx context.Context, articleID string, sectionIDs []string) ([]domain.Section, error) {
	return nil, nil
}

func (f *fakeStore) SearchSections(ctx context.Context, articleID string, query string, limit int) ([]domain.SectionHit, error) {
	return nil, nil
}

func articleWithSignal(id string, score float64, n int) domain.ArticleHit {
	signals := make([]domain.Signal, 0, n)
	for i := 0; i < n; i++ {
		signals = append(signals, domain.Signal{
			Kind:              "claim",
			Text:              "a notable claim worth citing",
			SectionID:         "s01",
			SupportingSnippet: "a notable claim",
		})
	}

	return domain.ArticleHit{
		Article: domain.Article{
			ArticleID: id,
			URL:       "https://example.com/" + id,
			Title:     "Title " + id,
			Summary:   "A short summary of the article content.",
			Signals:   signals,
		},
		Score: score,
	}
}

func TestPackEmptyStoreIsLowConfidence(t *testing.T) {
	r := New(&fakeStore{})

	pack, err := r.Pack(context.Background(), Request{Query: "asdfqwer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pack.Confidence != "low" {
		t.Fatalf("expected low confidence, got %q", pack.Confidence)
	}

	if pack.NextAction != "refine_query" {
		t.Fatalf("expected refine_query, got %q", pack.NextAction)
	}

	if len(pack.Items) != 0 {
		t.Fatalf("expected no items, got %d", len(pack.Items))
	}
}

func TestPackDropsArticlesWithoutSignals(t *testing.T) {
	hit := articleWithSignal("a1", 0.3, 0)

	r := New(&fakeStore{hits: []domain.ArticleHit{hit}})

	pack, err := r.Pack(context.Background(), Request{Query: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pack.Items) != 0 {
		t.Fatalf("expected article with zero signals to be dropped, got %d items", len(pack.Items))
	}
}

func TestPackHighConfidenceWithTwoCitedSignals(t *testing.T) {
	hit := articleWithSignal("a1", 0.5, 2)

	r := New(&fakeStore{hits: []domain.ArticleHit{hit}})

	pack, err := r.Pack(context.Background(), Request{Query: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pack.Confidence != "high" {
		t.Fatalf("expected high confidence, got %q", pack.Confidence)
	}

	if len(pack.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(pack.Items))
	}
}

func TestPackRespectsTinyTokenBudget(t *testing.T) {
	hits := []domain.ArticleHit{
		articleWithSignal("a1", 0.5, 2),
		articleWithSignal("a2", 0.4, 2),
		articleWithSignal("a3", 0.3, 2),
	}

	longSummary := "This is a much longer summary that should require trimming under a tiny token budget " +
		"because three rich candidates each carry enough text and citations to blow well past " +
		"the two hundred character budget derived from a fifty token request."

	for i := range hits {
		hits[i].Article.Summary = longSummary
	}

	r := New(&fakeStore{hits: hits})

	pack, err := r.Pack(context.Background(), Request{Query: "test", TokenBudget: 50, MaxItems: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pack.Items) != 1 {
		t.Fatalf("expected exactly one item under a tiny budget, got %d", len(pack.Items))
	}

	// trimmed-to-fit rule: max(80, char_budget/4) = max(80, 200/4) = 80
	if len(pack.Items[0].Summary) > 80 {
		t.Fatalf("expected trimmed summary <= 80 chars, got %d", len(pack.Items[0].Summary))
	}
}

func TestPackCapsSignalsAtThreePerItem(t *testing.T) {
	hit := articleWithSignal("a1", 0.5, 6)

	r := New(&fakeStore{hits: []domain.ArticleHit{hit}})

	pack, err := r.Pack(context.Background(), Request{Query: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pack.Items[0].Signals) != maxSignalsPerItem {
		t.Fatalf("expected %d signals, got %d", maxSignalsPerItem, len(pack.Items[0].Signals))
	}
}

func TestPackFiltersByTopic(t *testing.T) {
	hit := articleWithSignal("a1", 0.5, 1)
	hit.Article.Topics = []string{"Go"}

	r := New(&fakeStore{hits: []domain.ArticleHit{hit}})

	pack, err := r.Pack(context.Background(), Request{Query: "test", Topics: []string{"python"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pack.Items) != 0 {
		t.Fatalf("expected topic mismatch to exclude the article, got %d items", len(pack.Items))
	}
}
