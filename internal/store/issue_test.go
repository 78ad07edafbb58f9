package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIssueBumpsExistingFingerprint(t *testing.T) {
	s, db, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE issue SET last_seen = now\\(\\), event_count = event_count \\+ 1").
		WithArgs("fp-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int32(4)))

	id, err := s.GetOrCreateIssue(context.Background(), db, "fp-1", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int32(4), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateIssueInsertsOnFirstSighting(t *testing.T) {
	s, db, mock := newMockStore(t)

	mock.ExpectQuery("UPDATE issue SET last_seen = now\\(\\), event_count = event_count \\+ 1").
		WithArgs("fp-2").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO issue").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int32(5)))

	id, err := s.GetOrCreateIssue(context.Background(), db, "fp-2", nil, nil)
	require.NoError(t, err)
	require.Equal(t, int32(5), id)
	require.NoError(t, mock.ExpectationsWereMet())
}
