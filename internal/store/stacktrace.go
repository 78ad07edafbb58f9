package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
)

// GetOrCreateStacktrace keys on hash = SHA-256(canonical frames JSON); the
// fingerprint hash is attached if this is the first time the tuple is seen
// and kept as-is on a cache hit.
func (s *Store) GetOrCreateStacktrace(ctx context.Context, q Querier, hash string, fingerprintHash *string, framesJSON string) (int32, error) {
	var id int32
	err := q.QueryRowContext(ctx,
		`INSERT INTO stacktrace (hash, fingerprint_hash, frames_json) VALUES ($1, $2, $3)
		 ON CONFLICT (hash) DO NOTHING RETURNING id`,
		hash, fingerprintHash, framesJSON,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("stacktrace insert: %w", err))
	}

	if err := q.QueryRowContext(ctx,
		`SELECT id FROM stacktrace WHERE hash = $1`, hash,
	).Scan(&id); err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("stacktrace lookup: %w", err))
	}
	return id, nil
}
