package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/models"
)

// ArchiveExists reports whether an archive with hash exists.
func (s *Store) ArchiveExists(ctx context.Context, q Querier, hash string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM archive WHERE hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, apperrors.New(apperrors.KindDatabase, fmt.Errorf("archive exists: %w", err))
	}
	return exists, nil
}

// FindArchiveByHash loads an archive, returning ErrNotFound if absent.
func (s *Store) FindArchiveByHash(ctx context.Context, q Querier, hash string) (models.Archive, error) {
	var a models.Archive
	var originalSize sql.NullInt32
	err := q.QueryRowContext(ctx,
		`SELECT hash, project_id, compressed_payload, original_size, created_at FROM archive WHERE hash = $1`,
		hash,
	).Scan(&a.Hash, &a.ProjectID, &a.CompressedPayload, &originalSize, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Archive{}, apperrors.ErrNotFound
		}
		return models.Archive{}, apperrors.New(apperrors.KindDatabase, fmt.Errorf("find archive: %w", err))
	}
	if originalSize.Valid {
		a.OriginalSize = &originalSize.Int32
	}
	return a, nil
}

// ListArchives returns every archive ordered by hash, for the operational
// CLI's `archive export` command (R2's export/import round-trip).
func (s *Store) ListArchives(ctx context.Context, q Querier) ([]models.Archive, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT hash, project_id, compressed_payload, original_size, created_at FROM archive ORDER BY hash ASC`)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("list archives: %w", err))
	}
	defer rows.Close()

	var archives []models.Archive
	for rows.Next() {
		var a models.Archive
		var originalSize sql.NullInt32
		if err := rows.Scan(&a.Hash, &a.ProjectID, &a.CompressedPayload, &originalSize, &a.CreatedAt); err != nil {
			return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("scan archive: %w", err))
		}
		if originalSize.Valid {
			a.OriginalSize = &originalSize.Int32
		}
		archives = append(archives, a)
	}
	return archives, rows.Err()
}

// SaveArchive is INSERT-OR-IGNORE on hash: a duplicate hash is silent success.
func (s *Store) SaveArchive(ctx context.Context, q Querier, a models.Archive) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO archive (hash, project_id, compressed_payload, original_size)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (hash) DO NOTHING`,
		a.Hash, a.ProjectID, a.CompressedPayload, a.OriginalSize,
	)
	if err != nil {
		return apperrors.New(apperrors.KindDatabase, fmt.Errorf("save archive: %w", err))
	}
	return nil
}
