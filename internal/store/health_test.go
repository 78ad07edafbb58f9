package store_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestCountRawStatsReturnsAllFourCounts(t *testing.T) {
	s, _, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM archive").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(10)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM report").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(8)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM queue").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM queue_error").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))

	archives, reports, queue, regurgitated, err := s.CountRawStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(10), archives)
	require.Equal(t, int64(8), reports)
	require.Equal(t, int64(1), queue)
	require.Equal(t, int64(0), regurgitated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllArchiveHashesReturnsEveryHash(t *testing.T) {
	s, db, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"hash"}).AddRow("h1").AddRow("h2")
	mock.ExpectQuery("SELECT hash FROM archive").WillReturnRows(rows)

	hashes, err := s.AllArchiveHashes(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, []string{"h1", "h2"}, hashes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTruncateDerivedTablesTruncatesEveryDerivedTable(t *testing.T) {
	s, db, mock := newMockStore(t)
	mock.MatchExpectationsInOrder(false)

	// 12 fixed derived tables plus the 20 dictionary tables (iterated from a
	// map, so order is not guaranteed); match unordered.
	const derivedTableCount = 12 + 20
	for i := 0; i < derivedTableCount; i++ {
		mock.ExpectExec("TRUNCATE TABLE").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	err := s.TruncateDerivedTables(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
