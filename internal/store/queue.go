package store

import (
	"context"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/models"
)

// EnqueueArchive is idempotent on archive_hash: a duplicate returns the
// existing row's id, no new row is added.
func (s *Store) EnqueueArchive(ctx context.Context, q Querier, archiveHash string) (int32, error) {
	var id int32
	err := q.QueryRowContext(ctx,
		`INSERT INTO queue (archive_hash) VALUES ($1)
		 ON CONFLICT (archive_hash) DO UPDATE SET archive_hash = EXCLUDED.archive_hash
		 RETURNING id`,
		archiveHash,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("enqueue: %w", err))
	}
	return id, nil
}

// DequeueBatch returns up to limit items ordered by created_at ascending.
// Non-destructive: items stay in the queue until RemoveFromQueue is called.
func (s *Store) DequeueBatch(ctx context.Context, q Querier, limit int) ([]models.QueueItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, archive_hash, created_at FROM queue ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("dequeue batch: %w", err))
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		if err := rows.Scan(&item.ID, &item.ArchiveHash, &item.CreatedAt); err != nil {
			return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("scan queue item: %w", err))
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("dequeue batch rows: %w", err))
	}
	return items, nil
}

// RemoveFromQueue deletes a queue entry by archive_hash. Idempotent.
func (s *Store) RemoveFromQueue(ctx context.Context, q Querier, archiveHash string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM queue WHERE archive_hash = $1`, archiveHash); err != nil {
		return apperrors.New(apperrors.KindDatabase, fmt.Errorf("remove from queue: %w", err))
	}
	return nil
}

// CountPendingQueue returns the number of rows currently queued.
func (s *Store) CountPendingQueue(ctx context.Context, q Querier) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&count)
	if err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("count pending queue: %w", err))
	}
	return count, nil
}

// RecordQueueError upserts a QueueError by archive_hash, replacing the error
// text and timestamp on repeated failures.
func (s *Store) RecordQueueError(ctx context.Context, q Querier, archiveHash, errText string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO queue_error (archive_hash, error, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (archive_hash) DO UPDATE SET error = EXCLUDED.error, created_at = now()`,
		archiveHash, errText,
	)
	if err != nil {
		return apperrors.New(apperrors.KindDatabase, fmt.Errorf("record queue error: %w", err))
	}
	return nil
}

// CountQueueErrors returns the number of rows in queue_error.
func (s *Store) CountQueueErrors(ctx context.Context, q Querier) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_error`).Scan(&count)
	if err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("count queue errors: %w", err))
	}
	return count, nil
}

// RemoveQueueError deletes a queue_error row by archive_hash. Idempotent.
func (s *Store) RemoveQueueError(ctx context.Context, q Querier, archiveHash string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM queue_error WHERE archive_hash = $1`, archiveHash); err != nil {
		return apperrors.New(apperrors.KindDatabase, fmt.Errorf("remove queue error: %w", err))
	}
	return nil
}
