package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/models"
)

// InsertReport inserts the digested Report row. A duplicate event_id yields
// ErrDuplicateEventID (§4.10 step 8, §7) — the caller treats this specifically.
func (s *Store) InsertReport(ctx context.Context, q Querier, r models.Report) (int32, error) {
	var id int32
	err := q.QueryRowContext(ctx,
		`INSERT INTO report (
			event_id, archive_hash, timestamp, received_at, project_id,
			platform_id, environment_id, os_name_id, os_version_id,
			manufacturer_id, brand_id, model_id, chipset_id, device_specs_id,
			locale_id, timezone_id, connection_type_id, orientation_id,
			app_name_id, app_version_id, app_build_id, user_external_id_id,
			exception_type_id, exception_msg_id, issue_id, stacktrace_id, session_id
		) VALUES (
			$1, $2, $3, now(), $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, $21,
			$22, $23, $24, $25, $26
		) RETURNING id`,
		r.EventID, r.ArchiveHash, r.Timestamp, r.ProjectID,
		r.PlatformID, r.EnvironmentID, r.OSNameID, r.OSVersionID,
		r.ManufacturerID, r.BrandID, r.ModelID, r.ChipsetID, r.DeviceSpecsID,
		r.LocaleID, r.TimezoneID, r.ConnectionTypeID, r.OrientationID,
		r.AppNameID, r.AppVersionID, r.AppBuildID, r.UserExternalIDID,
		r.ExceptionTypeID, r.ExceptionMsgID, r.IssueID, r.StacktraceID, r.SessionID,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, apperrors.ErrDuplicateEventID
		}
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("insert report: %w", err))
	}
	return id, nil
}

// isUniqueViolation recognizes lib/pq's unique_violation SQLSTATE (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
