package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ethicnology/crash-cache/internal/store"
)

func TestUpsertSessionReturnsID(t *testing.T) {
	s, db, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO session").
		WithArgs(int32(1), "sid-1", true, sqlmock.AnyArg(), sqlmock.AnyArg(), int32(0), int32(2), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int32(8)))

	id, err := s.UpsertSession(context.Background(), db, store.UpsertSessionInput{
		ProjectID: 1,
		SID:       "sid-1",
		Init:      true,
		StartedAt: time.Unix(0, 0),
		Timestamp: time.Unix(0, 0),
		StatusID:  2,
	})
	require.NoError(t, err)
	require.Equal(t, int32(8), id)
	require.NoError(t, mock.ExpectationsWereMet())
}
