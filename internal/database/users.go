package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, hashed_password, full_name, role, preparation_screen_id, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.HashedPassword,
		&u.FullName,
		&u.Role,
		&u.PreparationScreenID,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, id))
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND is_active = true`
	return scanUser(q.db.QueryRow(ctx, sql, email))
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	const sql = `SELECT ` + userColumns + ` FROM users WHERE is_active = true ORDER BY full_name`
	rows, err := q.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type CreateUserParams struct {
	Email               string
	HashedPassword      string
	FullName            string
	Role                string
	PreparationScreenID pgtype.UUID
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const sql = `
		INSERT INTO users (email, hashed_password, full_name, role, preparation_screen_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql,
		arg.Email, arg.HashedPassword, arg.FullName, arg.Role, arg.PreparationScreenID))
}

type UpdateUserParams struct {
	ID                  uuid.UUID
	Email               string
	FullName            string
	Role                string
	PreparationScreenID pgtype.UUID
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	const sql = `
		UPDATE users
		SET email = $2, full_name = $3, role = $4, preparation_screen_id = $5, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING ` + userColumns
	return scanUser(q.db.QueryRow(ctx, sql,
		arg.ID, arg.Email, arg.FullName, arg.Role, arg.PreparationScreenID))
}

func (q *Queries) SoftDeleteUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	const sql = `
		UPDATE users SET is_active = false, updated_at = now()
		WHERE id = $1 AND is_active = true
		RETURNING id`
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, sql, id).Scan(&deleted)
	return deleted, err
}

type GetUserScreenRow struct {
	PreparationScreenID pgtype.UUID
	ScreenName          pgtype.Text
}

// GetUserScreen returns the user's assigned preparation screen, if any.
// Both fields are null when the user has no assignment.
func (q *Queries) GetUserScreen(ctx context.Context, userID uuid.UUID) (GetUserScreenRow, error) {
	const sql = `
		SELECT u.preparation_screen_id, ps.name
		FROM users u
		LEFT JOIN preparation_screens ps ON ps.id = u.preparation_screen_id
		WHERE u.id = $1 AND u.is_active = true`
	var row GetUserScreenRow
	err := q.db.QueryRow(ctx, sql, userID).Scan(&row.PreparationScreenID, &row.ScreenName)
	return row, err
}
