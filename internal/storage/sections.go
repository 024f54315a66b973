package db

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

// ReplaceSections atomically replaces all sections for an article:
// delete the existing rows, then insert the new set, in one
// transaction, so a reader never sees a partially replaced set.
func (db *DB) ReplaceSections(ctx context.Context, articleID string, sections []domain.Section) error {
	sorted := make([]domain.Section, len(sections))
	copy(sorted, sections)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}

		return sorted[i].SectionID < sorted[j].SectionID
	})

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace sections tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	if _, err := tx.Exec(ctx, `DELETE FROM intel_article_sections WHERE article_id = $1`, articleID); err != nil {
		return fmt.Errorf("delete existing sections: %w", err)
	}

	for _, s := range sorted {
		if s.SectionID == "" || s.Content == "" {
			continue
		}

		const insert = `
			INSERT INTO intel_article_sections (article_id, section_id, heading, content, rank)
			VALUES ($1, $2, $3, $4, $5)`

		if _, err := tx.Exec(ctx, insert, articleID, s.SectionID, s.Heading, s.Content, s.Rank); err != nil {
			return fmt.Errorf("insert section %s: %w", s.SectionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace sections tx: %w", err)
	}

	return nil
}

// GetSections returns the rank-ordered content for the given
// section IDs (or all sections, if sectionIDs is empty).
func (db *DB) GetSections(ctx context.Context, articleID string, sectionIDs []string) ([]domain.Section, error) {
	var (
		query string
		args  []any
	)

	if len(sectionIDs) == 0 {
		query = `
			SELECT article_id, section_id, heading, content, rank
			FROM intel_article_sections WHERE article_id = $1
			ORDER BY rank ASC`
		args = []any{articleID}
	} else {
		query = `
			SELECT article_id, section_id, heading, content, rank
			FROM intel_article_sections WHERE article_id = $1 AND section_id = ANY($2)
			ORDER BY rank ASC`
		args = []any{articleID, sectionIDs}
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get sections: %w", err)
	}
	defer rows.Close()

	return collectSections(rows)
}

// GetOutline returns the outline stored on the article row (derived
// from its sections at extraction time, and written again at
// enrichment).
func (db *DB) GetOutline(ctx context.Context, articleID string) ([]domain.OutlineEntry, error) {
	article, err := db.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	return article.Outline, nil
}

func collectSections(rows pgx.Rows) ([]domain.Section, error) {
	var sections []domain.Section

	for rows.Next() {
		var s domain.Section

		if err := rows.Scan(&s.ArticleID, &s.SectionID, &s.Heading, &s.Content, &s.Rank); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}

		sections = append(sections, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}

	return sections, nil
}
