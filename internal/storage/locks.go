package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const defaultLockTTL = 5 * time.Minute

// TryAcquireSchedulerLock tries to acquire a row-based lock with a
// TTL-based expiry, so a crashed holder doesn't wedge the lock forever.
// Returns true if acquired, false if already held by a non-expired
// holder. Not exercised by the core pipeline today (the worker claims
// jobs via row-level locking instead, see ClaimNextJob) but kept as
// infrastructure for a future multi-replica API leader election.
func (db *DB) TryAcquireSchedulerLock(ctx context.Context, lockName, holderID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	const query = `
		INSERT INTO scheduler_locks (lock_name, holder_id, expires_at)
		VALUES ($1, $2, now() + $3::interval)
		ON CONFLICT (lock_name) DO UPDATE
		SET holder_id = EXCLUDED.holder_id, expires_at = EXCLUDED.expires_at
		WHERE scheduler_locks.expires_at < now() OR scheduler_locks.holder_id = EXCLUDED.holder_id
		RETURNING holder_id`

	var got string

	err := db.Pool.QueryRow(ctx, query, lockName, holderID, ttl.String()).Scan(&got)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("try acquire scheduler lock: %w", err)
	}

	return true, nil
}

// ExtendSchedulerLock extends the TTL of a held lock (heartbeat).
func (db *DB) ExtendSchedulerLock(ctx context.Context, lockName, holderID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	const query = `
		UPDATE scheduler_locks
		SET expires_at = now() + $3::interval
		WHERE lock_name = $1 AND holder_id = $2`

	if _, err := db.Pool.Exec(ctx, query, lockName, holderID, ttl.String()); err != nil {
		return fmt.Errorf("extend scheduler lock: %w", err)
	}

	return nil
}

// ReleaseSchedulerLock releases a held lock.
func (db *DB) ReleaseSchedulerLock(ctx context.Context, lockName, holderID string) error {
	const query = `DELETE FROM scheduler_locks WHERE lock_name = $1 AND holder_id = $2`

	if _, err := db.Pool.Exec(ctx, query, lockName, holderID); err != nil {
		return fmt.Errorf("release scheduler lock: %w", err)
	}

	return nil
}
