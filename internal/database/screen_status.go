package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const screenStatusColumns = `id, order_id, preparation_screen_id, status, started_at, started_by, completed_at, completed_by, created_at, updated_at`

func scanScreenStatus(row interface{ Scan(dest ...any) error }) (OrderPreparationScreenStatus, error) {
	var s OrderPreparationScreenStatus
	err := row.Scan(
		&s.ID,
		&s.OrderID,
		&s.PreparationScreenID,
		&s.Status,
		&s.StartedAt,
		&s.StartedBy,
		&s.CompletedAt,
		&s.CompletedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

type GetScreenStatusParams struct {
	OrderID             uuid.UUID
	PreparationScreenID uuid.UUID
}

func (q *Queries) GetScreenStatus(ctx context.Context, arg GetScreenStatusParams) (OrderPreparationScreenStatus, error) {
	const sql = `
		SELECT ` + screenStatusColumns + `
		FROM order_preparation_screen_statuses
		WHERE order_id = $1 AND preparation_screen_id = $2`
	return scanScreenStatus(q.db.QueryRow(ctx, sql, arg.OrderID, arg.PreparationScreenID))
}

func (q *Queries) ListScreenStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderPreparationScreenStatus, error) {
	const sql = `
		SELECT ` + screenStatusColumns + `
		FROM order_preparation_screen_statuses
		WHERE order_id = $1`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []OrderPreparationScreenStatus
	for rows.Next() {
		s, err := scanScreenStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

type StartScreenPreparationParams struct {
	OrderID             uuid.UUID
	PreparationScreenID uuid.UUID
	StartedAt           pgtype.Timestamptz
	StartedBy           pgtype.UUID
}

// StartScreenPreparation upserts the (order, screen) record to IN_PREPARATION.
// The unique constraint on the pair makes concurrent callers converge on a
// single row: one inserts, the rest take the conflict path.
func (q *Queries) StartScreenPreparation(ctx context.Context, arg StartScreenPreparationParams) (OrderPreparationScreenStatus, error) {
	const sql = `
		INSERT INTO order_preparation_screen_statuses
			(order_id, preparation_screen_id, status, started_at, started_by)
		VALUES ($1, $2, 'IN_PREPARATION', $3, $4)
		ON CONFLICT (order_id, preparation_screen_id) DO UPDATE SET
			status       = 'IN_PREPARATION',
			started_at   = EXCLUDED.started_at,
			started_by   = EXCLUDED.started_by,
			completed_at = NULL,
			completed_by = NULL,
			updated_at   = now()
		RETURNING ` + screenStatusColumns
	return scanScreenStatus(q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.PreparationScreenID, arg.StartedAt, arg.StartedBy))
}

type CompleteScreenPreparationParams struct {
	OrderID             uuid.UUID
	PreparationScreenID uuid.UUID
	CompletedAt         pgtype.Timestamptz
	CompletedBy         pgtype.UUID
}

// CompleteScreenPreparation upserts the (order, screen) record to READY,
// preserving the started fields when the row already exists.
func (q *Queries) CompleteScreenPreparation(ctx context.Context, arg CompleteScreenPreparationParams) (OrderPreparationScreenStatus, error) {
	const sql = `
		INSERT INTO order_preparation_screen_statuses
			(order_id, preparation_screen_id, status, completed_at, completed_by)
		VALUES ($1, $2, 'READY', $3, $4)
		ON CONFLICT (order_id, preparation_screen_id) DO UPDATE SET
			status       = 'READY',
			completed_at = EXCLUDED.completed_at,
			completed_by = EXCLUDED.completed_by,
			updated_at   = now()
		RETURNING ` + screenStatusColumns
	return scanScreenStatus(q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.PreparationScreenID, arg.CompletedAt, arg.CompletedBy))
}

type UpdateScreenStatusParams struct {
	ID          uuid.UUID
	Status      string
	StartedAt   pgtype.Timestamptz
	StartedBy   pgtype.UUID
	CompletedAt pgtype.Timestamptz
	CompletedBy pgtype.UUID
}

func (q *Queries) UpdateScreenStatus(ctx context.Context, arg UpdateScreenStatusParams) (OrderPreparationScreenStatus, error) {
	const sql = `
		UPDATE order_preparation_screen_statuses
		SET status = $2, started_at = $3, started_by = $4,
		    completed_at = $5, completed_by = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + screenStatusColumns
	return scanScreenStatus(q.db.QueryRow(ctx, sql,
		arg.ID, arg.Status, arg.StartedAt, arg.StartedBy, arg.CompletedAt, arg.CompletedBy))
}

func (q *Queries) DeleteScreenStatusesByOrder(ctx context.Context, orderID uuid.UUID) error {
	const sql = `DELETE FROM order_preparation_screen_statuses WHERE order_id = $1`
	_, err := q.db.Exec(ctx, sql, orderID)
	return err
}

func (q *Queries) DeleteScreenStatus(ctx context.Context, id uuid.UUID) error {
	const sql = `DELETE FROM order_preparation_screen_statuses WHERE id = $1`
	_, err := q.db.Exec(ctx, sql, id)
	return err
}
