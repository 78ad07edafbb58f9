// Package recovery implements the ruminate procedure (spec.md §6): the
// designated recovery from a corrupt derived state. It truncates every
// derived table, resets their sequences, and re-enqueues every archive for
// the digest worker to rebuild from scratch (P7).
package recovery

import (
	"context"
	"database/sql"
	"log"

	"github.com/ethicnology/crash-cache/internal/store"
)

// Store is the subset of internal/store.Store ruminate needs.
type Store interface {
	TruncateDerivedTables(ctx context.Context, tx store.Querier) error
	AllArchiveHashes(ctx context.Context, q store.Querier) ([]string, error)
	EnqueueArchive(ctx context.Context, q store.Querier, archiveHash string) (int32, error)
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Report summarizes a completed ruminate run.
type Report struct {
	ArchivesRequeued int
}

// UseCase runs the ruminate procedure. project and archive tables are never
// touched; every other derived table is cleared and rebuilt.
type UseCase struct {
	store Store
}

func NewUseCase(st Store) *UseCase {
	return &UseCase{store: st}
}

// Run truncates every derived table and re-enqueues every archive hash,
// all inside one transaction so a mid-run failure leaves the prior state
// intact rather than a half-cleared one.
func (u *UseCase) Run(ctx context.Context) (Report, error) {
	var report Report

	err := u.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := u.store.TruncateDerivedTables(ctx, tx); err != nil {
			return err
		}

		hashes, err := u.store.AllArchiveHashes(ctx, tx)
		if err != nil {
			return err
		}

		for _, hash := range hashes {
			if _, err := u.store.EnqueueArchive(ctx, tx, hash); err != nil {
				return err
			}
		}
		report.ArchivesRequeued = len(hashes)
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	log.Printf("[recovery] ruminate requeued %d archives", report.ArchivesRequeued)
	return report, nil
}
