package database

import (
	"context"

	"github.com/google/uuid"
)

const screenColumns = `id, name, is_active, created_at, updated_at`

func scanScreen(row interface{ Scan(dest ...any) error }) (PreparationScreen, error) {
	var s PreparationScreen
	err := row.Scan(&s.ID, &s.Name, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) GetPreparationScreen(ctx context.Context, id uuid.UUID) (PreparationScreen, error) {
	const sql = `SELECT ` + screenColumns + ` FROM preparation_screens WHERE id = $1 AND is_active = true`
	return scanScreen(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) ListPreparationScreens(ctx context.Context) ([]PreparationScreen, error) {
	const sql = `SELECT ` + screenColumns + ` FROM preparation_screens WHERE is_active = true ORDER BY name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var screens []PreparationScreen
	for rows.Next() {
		s, err := scanScreen(rows)
		if err != nil {
			return nil, err
		}
		screens = append(screens, s)
	}
	return screens, rows.Err()
}

func (q *Queries) CreatePreparationScreen(ctx context.Context, name string) (PreparationScreen, error) {
	const sql = `INSERT INTO preparation_screens (name) VALUES ($1) RETURNING ` + screenColumns
	return scanScreen(q.db.QueryRow(ctx, sql, name))
}

type UpdatePreparationScreenParams struct {
	ID   uuid.UUID
	Name string
}

func (q *Queries) UpdatePreparationScreen(ctx context.Context, arg UpdatePreparationScreenParams) (PreparationScreen, error) {
	const sql = `
		UPDATE preparation_screens SET name = $2, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + screenColumns
	return scanScreen(q.db.QueryRow(ctx, sql, arg.ID, arg.Name))
}

func (q *Queries) SoftDeletePreparationScreen(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE preparation_screens SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}
