package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/models"
)

// GetOrCreateDeviceSpecs looks up a DeviceSpecs row keyed by the entire
// tuple (including nulls), inserting one if none matches (§4.4).
func (s *Store) GetOrCreateDeviceSpecs(ctx context.Context, q Querier, specs models.DeviceSpecs) (int32, error) {
	var id int32
	selectQuery := `
		SELECT id FROM device_specs
		WHERE screen_width IS NOT DISTINCT FROM $1
		  AND screen_height IS NOT DISTINCT FROM $2
		  AND screen_density IS NOT DISTINCT FROM $3
		  AND screen_dpi IS NOT DISTINCT FROM $4
		  AND processor_count IS NOT DISTINCT FROM $5
		  AND memory_size IS NOT DISTINCT FROM $6
		  AND archs IS NOT DISTINCT FROM $7
	`
	args := []any{
		specs.ScreenWidth, specs.ScreenHeight, specs.ScreenDensity, specs.ScreenDPI,
		specs.ProcessorCount, specs.MemorySize, specs.Archs,
	}
	err := q.QueryRowContext(ctx, selectQuery, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("device specs lookup: %w", err))
	}

	insertQuery := `
		INSERT INTO device_specs
			(screen_width, screen_height, screen_density, screen_dpi, processor_count, memory_size, archs)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if err := q.QueryRowContext(ctx, insertQuery, args...).Scan(&id); err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("device specs insert: %w", err))
	}
	return id, nil
}
