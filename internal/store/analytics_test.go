package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestBumpCounterBucketUpsertsIntoNamedTable(t *testing.T) {
	s, _, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO bucket_rate_limit_global").
		WithArgs("global", sqlmock.AnyArg(), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.BumpCounterBucket(context.Background(), "bucket_rate_limit_global", "global", time.Unix(0, 0), 3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBumpLatencyBucketUpsertsMergedStats(t *testing.T) {
	s, _, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO bucket_request_latency").
		WithArgs("ingest", sqlmock.AnyArg(), int64(100), int64(10), int64(50), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.BumpLatencyBucket(context.Background(), "ingest", time.Unix(0, 0), 100, 10, 50, 2)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupAnalyticsBucketsDeletesFromEveryTable(t *testing.T) {
	s, _, mock := newMockStore(t)

	for _, table := range []string{
		"bucket_rate_limit_global", "bucket_rate_limit_dsn",
		"bucket_rate_limit_subnet", "bucket_request_latency",
	} {
		mock.ExpectExec("DELETE FROM " + table).
			WithArgs(sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := s.CleanupAnalyticsBuckets(context.Background(), 30)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
