package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ethicnology/crash-cache/internal/models"
)

func TestGetOrCreateDeviceSpecsFindsExistingTuple(t *testing.T) {
	s, db, mock := newMockStore(t)

	width := int32(1080)
	mock.ExpectQuery("SELECT id FROM device_specs").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int32(7)))

	id, err := s.GetOrCreateDeviceSpecs(context.Background(), db, models.DeviceSpecs{ScreenWidth: &width})
	require.NoError(t, err)
	require.Equal(t, int32(7), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateDeviceSpecsInsertsWhenNoTupleMatches(t *testing.T) {
	s, db, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id FROM device_specs").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO device_specs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int32(9)))

	id, err := s.GetOrCreateDeviceSpecs(context.Background(), db, models.DeviceSpecs{})
	require.NoError(t, err)
	require.Equal(t, int32(9), id)
	require.NoError(t, mock.ExpectationsWereMet())
}
