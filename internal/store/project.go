package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethicnology/crash-cache/internal/apperrors"
	"github.com/ethicnology/crash-cache/internal/models"
)

// ProjectExists reports whether a project row exists for id.
func (s *Store) ProjectExists(ctx context.Context, q Querier, id int32) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM project WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, apperrors.New(apperrors.KindDatabase, fmt.Errorf("project exists: %w", err))
	}
	return exists, nil
}

// FindProjectByID loads a project, returning ErrProjectNotFound if absent.
func (s *Store) FindProjectByID(ctx context.Context, q Querier, id int32) (models.Project, error) {
	var p models.Project
	var publicKey, name sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, public_key, name, created_at FROM project WHERE id = $1`, id,
	).Scan(&p.ID, &publicKey, &name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Project{}, apperrors.ErrProjectNotFound
		}
		return models.Project{}, apperrors.New(apperrors.KindDatabase, fmt.Errorf("find project: %w", err))
	}
	if publicKey.Valid {
		p.PublicKey = &publicKey.String
	}
	if name.Valid {
		p.Name = &name.String
	}
	return p, nil
}

// ListProjects returns every project ordered by id, for the operational CLI's
// `project list` command.
func (s *Store) ListProjects(ctx context.Context, q Querier) ([]models.Project, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, public_key, name, created_at FROM project ORDER BY id ASC`)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("list projects: %w", err))
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		var publicKey, name sql.NullString
		if err := rows.Scan(&p.ID, &publicKey, &name, &p.CreatedAt); err != nil {
			return nil, apperrors.New(apperrors.KindDatabase, fmt.Errorf("scan project: %w", err))
		}
		if publicKey.Valid {
			p.PublicKey = &publicKey.String
		}
		if name.Valid {
			p.Name = &name.String
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject inserts a new project and returns its id.
func (s *Store) CreateProject(ctx context.Context, q Querier, publicKey, name *string) (int32, error) {
	var id int32
	err := q.QueryRowContext(ctx,
		`INSERT INTO project (public_key, name) VALUES ($1, $2) RETURNING id`,
		publicKey, name,
	).Scan(&id)
	if err != nil {
		return 0, apperrors.New(apperrors.KindDatabase, fmt.Errorf("create project: %w", err))
	}
	return id, nil
}

// DeleteProject removes a project by id. Idempotent.
func (s *Store) DeleteProject(ctx context.Context, q Querier, id int32) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM project WHERE id = $1`, id); err != nil {
		return apperrors.New(apperrors.KindDatabase, fmt.Errorf("delete project: %w", err))
	}
	return nil
}

// ValidateProjectKey implements §4.7's validate_key: a project with no
// configured public_key accepts any key; otherwise the key must match exactly.
func (s *Store) ValidateProjectKey(ctx context.Context, q Querier, id int32, key string) (bool, error) {
	p, err := s.FindProjectByID(ctx, q, id)
	if err != nil {
		return false, err
	}
	if p.PublicKey == nil {
		return true, nil
	}
	return *p.PublicKey == key, nil
}
