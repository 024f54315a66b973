package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lueurxax/telegram-digest-bot/internal/domain"
)

// ErrJobNotFound is returned when a job_id has no row.
var ErrJobNotFound = errors.New("job not found")

// claimableStatuses is every job status ClaimNextJob may pick up:
// freshly queued jobs (with or without enrichment), plus jobs that a
// previous worker attempt left in retry.
var claimableStatuses = []string{
	domain.JobStatusQueued,
	domain.JobStatusQueuedNoEnrich,
	domain.JobStatusRetry,
}

// CreateIngestJob inserts a new job row. JobID must already be set by
// the caller (a fresh uuid.NewString()).
func (db *DB) CreateIngestJob(ctx context.Context, job domain.IngestJob) error {
	status := job.Status
	if status == "" {
		if job.Enrich {
			status = domain.JobStatusQueued
		} else {
			status = domain.JobStatusQueuedNoEnrich
		}
	}

	const query = `
		INSERT INTO intel_ingest_jobs (job_id, article_id, url_original, url_canonical, status)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := db.Pool.Exec(ctx, query, toUUID(job.JobID), job.ArticleID, job.URL, job.URL, status); err != nil {
		return fmt.Errorf("create ingest job: %w", err)
	}

	return nil
}

// ClaimNextJob atomically claims the oldest claimable job: SELECT ...
// FOR UPDATE SKIP LOCKED so concurrent workers never double-claim,
// then bumps attempts and moves it to running, all inside one
// transaction. Enrich is derived from the status the row had BEFORE
// the update, since queued_no_enrich is the only status that means
// "skip enrichment" — everything else enriches.
func (db *DB) ClaimNextJob(ctx context.Context) (*domain.IngestJob, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	const selectQuery = `
		SELECT job_id, article_id, url_original, status, attempts
		FROM intel_ingest_jobs
		WHERE status = ANY($1)
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var (
		jobID     pgtype.UUID
		articleID string
		url       string
		status    string
		attempts  int
	)

	err = tx.QueryRow(ctx, selectQuery, claimableStatuses).Scan(&jobID, &articleID, &url, &status, &attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil //nolint:nilnil // no claimable job is not an error condition
		}

		return nil, fmt.Errorf("select claimable job: %w", err)
	}

	enrich := status != domain.JobStatusQueuedNoEnrich

	const updateQuery = `
		UPDATE intel_ingest_jobs
		SET status = $2, attempts = attempts + 1, updated_at = now()
		WHERE job_id = $1`

	if _, err := tx.Exec(ctx, updateQuery, jobID, domain.JobStatusRunning); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}

	return &domain.IngestJob{
		JobID:     fromUUID(jobID),
		ArticleID: articleID,
		URL:       url,
		Status:    domain.JobStatusRunning,
		Attempts:  attempts + 1,
		Enrich:    enrich,
	}, nil
}

// UpdateJobStatus moves a job to a terminal or retry status and
// records the failure reason, if any.
func (db *DB) UpdateJobStatus(ctx context.Context, jobID string, status string, lastError string) error {
	const query = `
		UPDATE intel_ingest_jobs
		SET status = $2, last_error = $3, updated_at = now()
		WHERE job_id = $1`

	tag, err := db.Pool.Exec(ctx, query, toUUID(jobID), status, toText(lastError))
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	return nil
}

// GetJob fetches a single job by ID, mainly for tests and diagnostics.
func (db *DB) GetJob(ctx context.Context, jobID string) (*domain.IngestJob, error) {
	const query = `
		SELECT job_id, article_id, url_original, status, attempts, last_error, created_at, updated_at
		FROM intel_ingest_jobs WHERE job_id = $1`

	var (
		j         domain.IngestJob
		id        pgtype.UUID
		lastError pgtype.Text
	)

	row := db.Pool.QueryRow(ctx, query, toUUID(jobID))

	err := row.Scan(&id, &j.ArticleID, &j.URL, &j.Status, &j.Attempts, &lastError, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrJobNotFound
		}

		return nil, fmt.Errorf("get job: %w", err)
	}

	j.JobID = fromUUID(id)
	j.LastError = fromText(lastError)
	j.Enrich = j.Status != domain.JobStatusQueuedNoEnrich

	return &j, nil
}
