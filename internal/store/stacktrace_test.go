package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateStacktraceInsertsNew(t *testing.T) {
	s, db, mock := newMockStore(t)

	fp := "fp-hash"
	mock.ExpectQuery("INSERT INTO stacktrace").
		WithArgs("st-hash", "fp-hash", "[]").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int32(11)))

	id, err := s.GetOrCreateStacktrace(context.Background(), db, "st-hash", &fp, "[]")
	require.NoError(t, err)
	require.Equal(t, int32(11), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateStacktraceFallsBackToLookupOnConflict(t *testing.T) {
	s, db, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO stacktrace").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id FROM stacktrace").
		WithArgs("st-hash").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int32(11)))

	id, err := s.GetOrCreateStacktrace(context.Background(), db, "st-hash", nil, "[]")
	require.NoError(t, err)
	require.Equal(t, int32(11), id)
	require.NoError(t, mock.ExpectationsWereMet())
}
