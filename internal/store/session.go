package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ethicnology/crash-cache/internal/apperrors"
)

// UpsertSession implements §4.10 step 3: upsert on (project_id, sid),
// replacing every mutable field.
func (s *Store) UpsertSession(ctx context.Context, q Querier, session UpsertSessionInput) (int32, error) {
	var id int32
	err := q.QueryRowContext(ctx,
		`INSERT INTO session (project_id, sid, init, started_at, timestamp, errors, status_id, release_id, environment_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (project_id, sid) DO UPDATE SET
		   init = EXCLUDED.init,
		   timestamp = EXCLUDED.timestamp,
		   errors = EXCLUDED.errors,
		   status_id = EXCLUDED.status_id,
		   release_id = EXCLUDED.release_id,
		   environment_id = EXCLUDED.environment_id
		 RETURNING id`,
		session.ProjectID, session.SID, session.Init, session.StartedAt, session.Timestamp,
		session.Errors, session.StatusID, session.ReleaseID, session.EnvironmentID,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("upsert session: %w", err))
	}
	return id, nil
}

// UpsertSessionInput carries the fields needed to upsert a Session row.
type UpsertSessionInput struct {
	ProjectID     int32
	SID           string
	Init          bool
	StartedAt     time.Time
	Timestamp     time.Time
	Errors        int32
	StatusID      int32
	ReleaseID     *int32
	EnvironmentID *int32
}
