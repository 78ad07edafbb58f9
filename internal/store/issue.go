package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
)

// GetOrCreateIssue implements the Issue side of §4.10 step 7: a repeat
// fingerprint bumps last_seen and event_count; a new one is inserted fresh.
func (s *Store) GetOrCreateIssue(ctx context.Context, q Querier, fingerprintHash string, exceptionTypeID *int32, title *string) (int32, error) {
	var id int32
	err := q.QueryRowContext(ctx,
		`UPDATE issue SET last_seen = now(), event_count = event_count + 1
		 WHERE fingerprint_hash = $1
		 RETURNING id`,
		fingerprintHash,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("issue update: %w", err))
	}

	err = q.QueryRowContext(ctx,
		`INSERT INTO issue (fingerprint_hash, exception_type_id, title, first_seen, last_seen, event_count)
		 VALUES ($1, $2, $3, now(), now(), 1)
		 ON CONFLICT (fingerprint_hash) DO UPDATE
		   SET last_seen = now(), event_count = issue.event_count + 1
		 RETURNING id`,
		fingerprintHash, exceptionTypeID, title,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("issue insert: %w", err))
	}
	return id, nil
}
