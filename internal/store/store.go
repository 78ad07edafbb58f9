// Package store holds the Postgres repositories backing every entity in
// spec.md §3 (§4.4-§4.7).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
)

// Store wraps the connection pool and exposes per-entity repositories plus
// transactional helpers used by the ingestion and digest use-cases.
type Store struct {
	db *sql.DB
}

// New constructs a Store over an already-opened, already-pinged *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Ambient returns the pool itself as a Querier, for callers that need to run
// a single repository method outside any caller-managed transaction.
func (s *Store) Ambient() Querier {
	return s.db
}

// Querier is satisfied by both *sql.DB and *sql.Tx, letting every repository
// method run either ambiently or inside a caller-managed transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapConnErr(err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapConnErr(err)
	}
	return nil
}

// mapConnErr maps a raw database/sql error onto the apperrors taxonomy.
func mapConnErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return apperrors.New(apperrors.KindConnectionPool, err)
	}
	return apperrors.New(apperrors.KindDatabase, fmt.Errorf("store: %w", err))
}
