package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type GetProductForOrderRow struct {
	ID                  uuid.UUID
	Name                string
	BasePrice           pgtype.Numeric
	PreparationScreenID pgtype.UUID
	IsPizza             bool
}

func (q *Queries) GetProductForOrder(ctx context.Context, id uuid.UUID) (GetProductForOrderRow, error) {
	const sql = `
		SELECT id, name, base_price, preparation_screen_id, is_pizza
		FROM products WHERE id = $1 AND is_active = true`
	var row GetProductForOrderRow
	err := q.db.QueryRow(ctx, sql, id).Scan(
		&row.ID, &row.Name, &row.BasePrice, &row.PreparationScreenID, &row.IsPizza)
	return row, err
}

type GetVariantForOrderRow struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	PriceAdjustment pgtype.Numeric
}

func (q *Queries) GetVariantForOrder(ctx context.Context, id uuid.UUID) (GetVariantForOrderRow, error) {
	const sql = `SELECT id, product_id, name, price_adjustment FROM product_variants WHERE id = $1`
	var row GetVariantForOrderRow
	err := q.db.QueryRow(ctx, sql, id).Scan(&row.ID, &row.ProductID, &row.Name, &row.PriceAdjustment)
	return row, err
}

type GetModifierForOrderRow struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     pgtype.Numeric
}

func (q *Queries) GetModifierForOrder(ctx context.Context, id uuid.UUID) (GetModifierForOrderRow, error) {
	const sql = `SELECT id, product_id, name, price FROM product_modifiers WHERE id = $1`
	var row GetModifierForOrderRow
	err := q.db.QueryRow(ctx, sql, id).Scan(&row.ID, &row.ProductID, &row.Name, &row.Price)
	return row, err
}

func (q *Queries) GetPizzaCustomization(ctx context.Context, id uuid.UUID) (PizzaCustomization, error) {
	const sql = `SELECT id, name, is_active FROM pizza_customizations WHERE id = $1 AND is_active = true`
	var pc PizzaCustomization
	err := q.db.QueryRow(ctx, sql, id).Scan(&pc.ID, &pc.Name, &pc.IsActive)
	return pc, err
}
