package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/models"
)

// dictionaryTables maps a DictionaryKind to its backing table name. Every
// table has the shape (id serial primary key, value text unique).
var dictionaryTables = map[models.DictionaryKind]string{
	models.KindPlatform:       "dict_platform",
	models.KindEnvironment:    "dict_environment",
	models.KindOSName:         "dict_os_name",
	models.KindOSVersion:      "dict_os_version",
	models.KindManufacturer:   "dict_manufacturer",
	models.KindBrand:          "dict_brand",
	models.KindModel:          "dict_model",
	models.KindChipset:        "dict_chipset",
	models.KindLocale:         "dict_locale",
	models.KindTimezone:       "dict_timezone",
	models.KindConnectionType: "dict_connection_type",
	models.KindOrientation:    "dict_orientation",
	models.KindAppName:        "dict_app_name",
	models.KindAppVersion:     "dict_app_version",
	models.KindAppBuild:       "dict_app_build",
	models.KindUserExternalID: "dict_user_external_id",
	models.KindExceptionType:  "dict_exception_type",
	models.KindSessionStatus:  "dict_session_status",
	models.KindSessionRelease: "dict_session_release",
	models.KindSessionEnv:     "dict_session_environment",
}

// GetOrCreateDictionaryEntry implements §4.4's get_or_create: insert-or-ignore
// on value, then look the value up if the insert found a conflict.
func (s *Store) GetOrCreateDictionaryEntry(ctx context.Context, q Querier, kind models.DictionaryKind, value string) (int32, error) {
	table, ok := dictionaryTables[kind]
	if !ok {
		return 0, apperrors.New(apperrors.KindInvalidRequest, fmt.Errorf("unknown dictionary kind: %s", kind))
	}

	var id int32
	insertQuery := fmt.Sprintf(
		`INSERT INTO %s (value) VALUES ($1) ON CONFLICT (value) DO NOTHING RETURNING id`, table,
	)
	err := q.QueryRowContext(ctx, insertQuery, value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("dictionary insert %s: %w", table, err))
	}

	selectQuery := fmt.Sprintf(`SELECT id FROM %s WHERE value = $1`, table)
	if err := q.QueryRowContext(ctx, selectQuery, value).Scan(&id); err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("dictionary lookup %s: %w", table, err))
	}
	return id, nil
}
