package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

// SearchArticles runs a full-text search over intel_articles (title,
// summary, and the rendered signals), ranked by ts_rank, optionally
// restricted to articles published (or, without a publish date,
// ingested) within recencyDays.
func (db *DB) SearchArticles(ctx context.Context, query string, limit int, recencyDays int) ([]domain.ArticleHit, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := `
		SELECT article_id, url, title, publisher, author, published_at, status,
		       topics, tags, summary, signals, outline, outbound_links,
		       fetch_meta, extraction_meta, enrichment_meta, created_at, updated_at,
		       ts_rank(
		           to_tsvector('english', coalesce(title, '') || ' ' || coalesce(summary, '') || ' ' || coalesce(signals::text, '')),
		           plainto_tsquery('english', $1)
		       ) AS score
		FROM intel_articles
		WHERE to_tsvector('english', coalesce(title, '') || ' ' || coalesce(summary, '') || ' ' || coalesce(signals::text, ''))
		      @@ plainto_tsquery('english', $1)
		  AND status IN ('enriched', 'partial')`

	args := []any{query}

	if recencyDays > 0 {
		sql += fmt.Sprintf(" AND coalesce(published_at, created_at) >= now() - ($%d * interval '1 day')", len(args)+1)
		args = append(args, recencyDays)
	}

	sql += fmt.Sprintf(" ORDER BY score DESC, published_at DESC NULLS LAST, created_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	defer rows.Close()

	var hits []domain.ArticleHit

	for rows.Next() {
		hit, err := scanArticleHit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article hit: %w", err)
		}

		hits = append(hits, *hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article hits: %w", err)
	}

	return hits, nil
}

func scanArticleHit(rows pgx.Rows) (*domain.ArticleHit, error) {
	var (
		hit            domain.ArticleHit
		publisher      pgtype.Text
		author         pgtype.Text
		publishedAt    pgtype.Timestamptz
		signalsJSON    []byte
		outlineJSON    []byte
		fetchMeta      []byte
		extractionMeta []byte
		enrichmentMeta []byte
	)

	a := &hit.Article

	err := rows.Scan(
		&a.ArticleID, &a.URL, &a.Title, &publisher, &author, &publishedAt, &a.Status,
		&a.Topics, &a.Tags, &a.Summary, &signalsJSON, &outlineJSON, &a.OutboundLinks,
		&fetchMeta, &extractionMeta, &enrichmentMeta, &a.CreatedAt, &a.UpdatedAt, &hit.Score,
	)
	if err != nil {
		return nil, err
	}

	a.Publisher = fromText(publisher)
	a.Author = fromText(author)

	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}

	if len(signalsJSON) > 0 {
		_ = json.Unmarshal(signalsJSON, &a.Signals)
	}

	if len(outlineJSON) > 0 {
		_ = json.Unmarshal(outlineJSON, &a.Outline)
	}

	a.FetchMeta = unmarshalMeta(fetchMeta)
	a.ExtractionMeta = unmarshalMeta(extractionMeta)
	a.EnrichmentMeta = unmarshalMeta(enrichmentMeta)

	return &hit, nil
}

// SearchSections runs a per-article full-text search over
// intel_article_sections, returning ts_headline snippets with the
// surrounding markers stripped.
func (db *DB) SearchSections(ctx context.Context, articleID string, query string, limit int) ([]domain.SectionHit, error) {
	if limit <= 0 {
		limit = 10
	}

	const sql = `
		SELECT section_id, rank,
		       ts_headline('english', content, plainto_tsquery('english', $2),
		                   'StartSel=<<, StopSel=>>, MaxFragments=1, MaxWords=40, MinWords=15')
		FROM intel_article_sections
		WHERE article_id = $1
		  AND to_tsvector('english', content) @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(to_tsvector('english', content), plainto_tsquery('english', $2)) DESC
		LIMIT $3`

	rows, err := db.Pool.Query(ctx, sql, articleID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search sections: %w", err)
	}
	defer rows.Close()

	var hits []domain.SectionHit

	for rows.Next() {
		var (
			h        domain.SectionHit
			headline string
		)

		if err := rows.Scan(&h.SectionID, &h.Rank, &headline); err != nil {
			return nil, fmt.Errorf("scan section hit: %w", err)
		}

		h.Snippet = stripHeadlineMarkers(headline)
		hits = append(hits, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate section hits: %w", err)
	}

	return hits, nil
}

func stripHeadlineMarkers(s string) string {
	s = strings.ReplaceAll(s, "<<", "")
	s = strings.ReplaceAll(s, ">>", "")

	return s
}
