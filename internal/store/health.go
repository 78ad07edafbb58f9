package store

import (
	"context"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
)

// CountRawStats issues the four raw COUNT(*) queries backing the Health
// Cache's periodic refresh (§4.13). orphaned is computed by the caller as
// archives - reports - queue - regurgitated (invariant P6/§3.6).
func (s *Store) CountRawStats(ctx context.Context) (archives, reports, queue, regurgitated int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archive`).Scan(&archives); err != nil {
		return 0, 0, 0, 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("count archives: %w", err))
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM report`).Scan(&reports); err != nil {
		return 0, 0, 0, 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("count reports: %w", err))
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&queue); err != nil {
		return 0, 0, 0, 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("count queue: %w", err))
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue_error`).Scan(&regurgitated); err != nil {
		return 0, 0, 0, 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("count queue_error: %w", err))
	}
	return archives, reports, queue, regurgitated, nil
}

// AllArchiveHashes lists every archive hash, used by ruminate to re-enqueue
// the entire archive set.
func (s *Store) AllArchiveHashes(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT hash FROM archive`)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("list archive hashes: %w", err))
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("scan archive hash: %w", err))
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// TruncateDerivedTables wipes every table the ruminate procedure considers
// derived (everything except project and archive) and resets their
// auto-increment sequences (spec.md §6's ruminate contract).
func (s *Store) TruncateDerivedTables(ctx context.Context, tx Querier) error {
	tables := []string{
		"report", "session", "issue", "stacktrace", "exception_message",
		"device_specs", "queue", "queue_error",
		"bucket_rate_limit_global", "bucket_rate_limit_dsn",
		"bucket_rate_limit_subnet", "bucket_request_latency",
	}
	for _, t := range dictionaryTables {
		tables = append(tables, t)
	}

	for _, table := range tables {
		query := fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY CASCADE`, table)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return apperrors.New(apperrors.KindDatabase, fmt.Errorf("truncate %s: %w", table, err))
		}
	}
	return nil
}
