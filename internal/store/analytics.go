package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ethicnology/crash-cache/internal/apperrors"
)

// BumpCounterBucket upserts one count-bucket row (rate-limit bucket tables),
// accumulating into the same (key, bucket_start) row across flushes within
// the same minute (§4.12).
func (s *Store) BumpCounterBucket(ctx context.Context, table, key string, bucketStart time.Time, delta int64) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (key, bucket_start, count) VALUES ($1, $2, $3)
		 ON CONFLICT (key, bucket_start) DO UPDATE SET count = %s.count + EXCLUDED.count`,
		table, table,
	)
	if _, err := s.db.ExecContext(ctx, query, key, bucketStart, delta); err != nil {
		return apperrors.New(apperrors.KindDatabase, fmt.Errorf("bump counter bucket %s: %w", table, err))
	}
	return nil
}

// BumpLatencyBucket upserts one latency-bucket row, merging sum/min/max/count.
func (s *Store) BumpLatencyBucket(ctx context.Context, key string, bucketStart time.Time, sumMillis int64, minMillis, maxMillis int64, count int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bucket_request_latency (key, bucket_start, sum_millis, min_millis, max_millis, count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key, bucket_start) DO UPDATE SET
		   sum_millis = bucket_request_latency.sum_millis + EXCLUDED.sum_millis,
		   min_millis = LEAST(bucket_request_latency.min_millis, EXCLUDED.min_millis),
		   max_millis = GREATEST(bucket_request_latency.max_millis, EXCLUDED.max_millis),
		   count = bucket_request_latency.count + EXCLUDED.count`,
		key, bucketStart, sumMillis, minMillis, maxMillis, count,
	)
	if err != nil {
		return apperrors.New(apperrors.KindDatabase, fmt.Errorf("bump latency bucket: %w", err))
	}
	return nil
}

// analyticsBucketTables lists every table §4.12 names for retention cleanup.
var analyticsBucketTables = []string{
	"bucket_rate_limit_global",
	"bucket_rate_limit_dsn",
	"bucket_rate_limit_subnet",
	"bucket_request_latency",
}

// CleanupAnalyticsBuckets deletes rows older than retentionDays across all
// four bucket tables, run on the analytics collector's hourly tick.
func (s *Store) CleanupAnalyticsBuckets(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)
	for _, table := range analyticsBucketTables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE bucket_start < $1`, table)
		if _, err := s.db.ExecContext(ctx, query, cutoff); err != nil {
			return apperrors.New(apperrors.KindDatabase, fmt.Errorf("cleanup %s: %w", table, err))
		}
	}
	return nil
}
