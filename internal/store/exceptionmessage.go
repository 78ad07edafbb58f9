package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/codec"
)

// GetOrCreateExceptionMessage keys on SHA-256(value) (§4.4, §3).
func (s *Store) GetOrCreateExceptionMessage(ctx context.Context, q Querier, value string) (int32, error) {
	hash := codec.Hash([]byte(value))

	var id int32
	err := q.QueryRowContext(ctx,
		`INSERT INTO exception_message (hash, value) VALUES ($1, $2)
		 ON CONFLICT (hash) DO NOTHING RETURNING id`,
		hash, value,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("exception message insert: %w", err))
	}

	if err := q.QueryRowContext(ctx,
		`SELECT id FROM exception_message WHERE hash = $1`, hash,
	).Scan(&id); err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("exception message lookup: %w", err))
	}
	return id, nil
}
