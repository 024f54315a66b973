package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

// ErrArticleNotFound is returned when an article_id has no row.
var ErrArticleNotFound = errors.New("article not found")

// ArticleSeed describes the minimal row to upsert when an article is
// first queued for ingestion.
type ArticleSeed struct {
	ArticleID   string
	URL         string
	URLOriginal string
	Topics      []string
	Tags        []string
	Status      string
	ForceReset  bool
}

// UpsertArticleSeed inserts a new article row or, on conflict, updates
// its url/status/topics/tags. When ForceReset is set the previously
// extracted and enriched fields are cleared, so a forced re-fetch
// starts from a clean slate instead of mixing stale content with new.
func (db *DB) UpsertArticleSeed(ctx context.Context, seed ArticleSeed) error {
	status := seed.Status
	if status == "" {
		status = domain.ArticleStatusQueued
	}

	const query = `
		INSERT INTO intel_articles (article_id, url, url_original, title, status, topics, tags)
		VALUES ($1, $2, $3, '', $4, $5, $6)
		ON CONFLICT (article_id) DO UPDATE SET
			url = EXCLUDED.url,
			url_original = EXCLUDED.url_original,
			status = EXCLUDED.status,
			topics = EXCLUDED.topics,
			tags = EXCLUDED.tags,
			updated_at = now()
			%s`

	resetClause := ""
	if seed.ForceReset {
		resetClause = `,
			summary = '', signals = '[]', outline = '[]', outbound_links = '{}',
			raw_html = NULL, extracted_text = NULL, http_status = NULL,
			content_type = NULL, etag = NULL, last_modified = NULL,
			fetch_meta = NULL, extraction_meta = NULL, enrichment_meta = NULL`
	}

	full := fmt.Sprintf(query, resetClause)

	if _, err := db.Pool.Exec(ctx, full,
		seed.ArticleID, seed.URL, toText(seed.URLOriginal), status, seed.Topics, seed.Tags,
	); err != nil {
		return fmt.Errorf("upsert article seed: %w", err)
	}

	return nil
}

// MarkArticleExtracted persists the outcome of the extraction stage:
// title/author/publisher/published_at plus the raw and extracted text
// and fetch/extraction metadata.
func (db *DB) MarkArticleExtracted(ctx context.Context, articleID string, fields ExtractedFields) error {
	fetchMeta, err := marshalMeta(fields.FetchMeta)
	if err != nil {
		return fmt.Errorf("marshal fetch_meta: %w", err)
	}

	extractionMeta, err := marshalMeta(fields.ExtractionMeta)
	if err != nil {
		return fmt.Errorf("marshal extraction_meta: %w", err)
	}

	outlineJSON, err := json.Marshal(fields.Outline)
	if err != nil {
		return fmt.Errorf("marshal outline: %w", err)
	}

	const query = `
		UPDATE intel_articles SET
			title = $2, author = $3, publisher = $4, published_at = $5,
			raw_html = $6, extracted_text = $7,
			http_status = $8, content_type = $9, etag = $10, last_modified = $11,
			fetch_meta = $12, extraction_meta = $13, outline = $14,
			status = $15, updated_at = now()
		WHERE article_id = $1`

	_, err = db.Pool.Exec(ctx, query,
		articleID, fields.Title, toText(fields.Author), toText(fields.Publisher),
		toTimestamptzPtr(fields.PublishedAt),
		toText(fields.RawHTML), toText(fields.ExtractedText),
		toInt4(fields.HTTPStatus), toText(fields.ContentType), toText(fields.ETag), toText(fields.LastModified),
		fetchMeta, extractionMeta, outlineJSON,
		domain.ArticleStatusExtracted,
	)
	if err != nil {
		return fmt.Errorf("mark article extracted: %w", err)
	}

	return nil
}

// ExtractedFields is the set of columns MarkArticleExtracted writes.
type ExtractedFields struct {
	Title          string
	Author         string
	Publisher      string
	PublishedAt    *time.Time
	RawHTML        string
	ExtractedText  string
	HTTPStatus     int
	ContentType    string
	ETag           string
	LastModified   string
	FetchMeta      map[string]any
	ExtractionMeta map[string]any
	Outline        []domain.OutlineEntry
}

// MarkArticleEnriched persists the enrichment result: status is
// ArticleStatusEnriched on success, or ArticleStatusPartial when
// enrichment failed but extraction succeeded (summary/signals empty,
// topics left as whatever the caller already had, enrichmentMeta
// carrying the failure reason).
func (db *DB) MarkArticleEnriched(
	ctx context.Context,
	articleID string,
	summary string,
	signals []domain.Signal,
	topics []string,
	outline []domain.OutlineEntry,
	enrichmentMeta map[string]any,
	status string,
) error {
	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}

	outlineJSON, err := json.Marshal(outline)
	if err != nil {
		return fmt.Errorf("marshal outline: %w", err)
	}

	metaJSON, err := marshalMeta(enrichmentMeta)
	if err != nil {
		return fmt.Errorf("marshal enrichment_meta: %w", err)
	}

	const query = `
		UPDATE intel_articles SET
			summary = $2, signals = $3, outline = $4, topics = $5,
			enrichment_meta = $6, status = $7, updated_at = now()
		WHERE article_id = $1`

	if _, err := db.Pool.Exec(ctx, query,
		articleID, summary, signalsJSON, outlineJSON, topics, metaJSON, status,
	); err != nil {
		return fmt.Errorf("mark article enriched: %w", err)
	}

	return nil
}

// MarkArticleFailed moves an article to the failed status, leaving
// whatever extraction it already has in place.
func (db *DB) MarkArticleFailed(ctx context.Context, articleID string) error {
	const query = `UPDATE intel_articles SET status = $2, updated_at = now() WHERE article_id = $1`

	if _, err := db.Pool.Exec(ctx, query, articleID, domain.ArticleStatusFailed); err != nil {
		return fmt.Errorf("mark article failed: %w", err)
	}

	return nil
}

// GetArticle fetches the full row for one article.
func (db *DB) GetArticle(ctx context.Context, articleID string) (*domain.Article, error) {
	const query = `
		SELECT article_id, url, title, publisher, author, published_at, status,
		       topics, tags, summary, signals, outline, outbound_links,
		       fetch_meta, extraction_meta, enrichment_meta, created_at, updated_at
		FROM intel_articles WHERE article_id = $1`

	row := db.Pool.QueryRow(ctx, query, articleID)

	article, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArticleNotFound
		}

		return nil, fmt.Errorf("get article: %w", err)
	}

	return article, nil
}

// GetLatestJobError returns the last_error of the most recent job for
// an article, or "" if there isn't one.
func (db *DB) GetLatestJobError(ctx context.Context, articleID string) (string, error) {
	const query = `
		SELECT last_error FROM intel_ingest_jobs
		WHERE article_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var lastError pgtype.Text

	err := db.Pool.QueryRow(ctx, query, articleID).Scan(&lastError)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("get latest job error: %w", err)
	}

	return fromText(lastError), nil
}

func scanArticle(row pgx.Row) (*domain.Article, error) {
	var (
		a              domain.Article
		publisher      pgtype.Text
		author         pgtype.Text
		publishedAt    pgtype.Timestamptz
		signalsJSON    []byte
		outlineJSON    []byte
		fetchMeta      []byte
		extractionMeta []byte
		enrichmentMeta []byte
	)

	err := row.Scan(
		&a.ArticleID, &a.URL, &a.Title, &publisher, &author, &publishedAt, &a.Status,
		&a.Topics, &a.Tags, &a.Summary, &signalsJSON, &outlineJSON, &a.OutboundLinks,
		&fetchMeta, &extractionMeta, &enrichmentMeta, &a.CreatedAt, &a.UpdatedAt,
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

	return &a, nil
}

func marshalMeta(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return []byte("null"), nil
	}

	return json.Marshal(meta)
}

func unmarshalMeta(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil
	}

	return meta
}
