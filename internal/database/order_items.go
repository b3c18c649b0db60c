package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderItemColumns = `id, order_id, product_id, variant_id, base_price, final_price, preparation_notes, preparation_status, status_changed_at, prepared_at, prepared_by, created_at`

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID,
		&it.OrderID,
		&it.ProductID,
		&it.VariantID,
		&it.BasePrice,
		&it.FinalPrice,
		&it.PreparationNotes,
		&it.PreparationStatus,
		&it.StatusChangedAt,
		&it.PreparedAt,
		&it.PreparedBy,
		&it.CreatedAt,
	)
	return it, err
}

type CreateOrderItemParams struct {
	OrderID          uuid.UUID
	ProductID        uuid.UUID
	VariantID        pgtype.UUID
	BasePrice        pgtype.Numeric
	FinalPrice       pgtype.Numeric
	PreparationNotes pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	const sql = `
		INSERT INTO order_items (order_id, product_id, variant_id, base_price, final_price, preparation_notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + orderItemColumns
	return scanOrderItem(q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.ProductID, arg.VariantID, arg.BasePrice, arg.FinalPrice, arg.PreparationNotes))
}

type CreateOrderItemModifierParams struct {
	OrderItemID uuid.UUID
	ModifierID  uuid.UUID
}

func (q *Queries) CreateOrderItemModifier(ctx context.Context, arg CreateOrderItemModifierParams) (OrderItemModifier, error) {
	const sql = `
		INSERT INTO order_item_modifiers (order_item_id, modifier_id)
		VALUES ($1, $2)
		RETURNING id, order_item_id, modifier_id`
	var m OrderItemModifier
	err := q.db.QueryRow(ctx, sql, arg.OrderItemID, arg.ModifierID).
		Scan(&m.ID, &m.OrderItemID, &m.ModifierID)
	return m, err
}

type CreateSelectedPizzaCustomizationParams struct {
	OrderItemID          uuid.UUID
	PizzaCustomizationID uuid.UUID
	Half                 string
	Action               string
}

func (q *Queries) CreateSelectedPizzaCustomization(ctx context.Context, arg CreateSelectedPizzaCustomizationParams) (SelectedPizzaCustomization, error) {
	const sql = `
		INSERT INTO selected_pizza_customizations (order_item_id, pizza_customization_id, half, action)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_item_id, pizza_customization_id, half, action`
	var c SelectedPizzaCustomization
	err := q.db.QueryRow(ctx, sql,
		arg.OrderItemID, arg.PizzaCustomizationID, arg.Half, arg.Action,
	).Scan(&c.ID, &c.OrderItemID, &c.PizzaCustomizationID, &c.Half, &c.Action)
	return c, err
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	const sql = `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// OrderItemWithScreen is an order item joined with its product's home screen.
type OrderItemWithScreen struct {
	OrderItem
	PreparationScreenID pgtype.UUID
}

// GetOrderItemsWithScreen loads the given items together with the preparation
// screen their product belongs to. Missing IDs are silently absent from the
// result; callers compare lengths to detect them.
func (q *Queries) GetOrderItemsWithScreen(ctx context.Context, ids []uuid.UUID) ([]OrderItemWithScreen, error) {
	const sql = `
		SELECT oi.` + orderItemColumns2 + `, p.preparation_screen_id
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.id = ANY($1)`
	rows, err := q.db.Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItemWithScreen
	for rows.Next() {
		var it OrderItemWithScreen
		err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.VariantID,
			&it.BasePrice,
			&it.FinalPrice,
			&it.PreparationNotes,
			&it.PreparationStatus,
			&it.StatusChangedAt,
			&it.PreparedAt,
			&it.PreparedBy,
			&it.CreatedAt,
			&it.PreparationScreenID,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// orderItemColumns2 is orderItemColumns qualified for the oi alias.
const orderItemColumns2 = `id, oi.order_id, oi.product_id, oi.variant_id, oi.base_price, oi.final_price, oi.preparation_notes, oi.preparation_status, oi.status_changed_at, oi.prepared_at, oi.prepared_by, oi.created_at`

type SetItemsPreparationStatusParams struct {
	IDs        []uuid.UUID
	Status     string
	PreparedAt pgtype.Timestamptz
	PreparedBy pgtype.UUID
}

// SetItemsPreparationStatus updates all given items in one statement so a
// grouped toggle is all-or-nothing.
func (q *Queries) SetItemsPreparationStatus(ctx context.Context, arg SetItemsPreparationStatusParams) (int64, error) {
	const sql = `
		UPDATE order_items
		SET preparation_status = $2, prepared_at = $3, prepared_by = $4, status_changed_at = now()
		WHERE id = ANY($1)`
	tag, err := q.db.Exec(ctx, sql, arg.IDs, arg.Status, arg.PreparedAt, arg.PreparedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type SetScreenItemsPreparationStatusParams struct {
	OrderID             uuid.UUID
	PreparationScreenID uuid.UUID
	Status              string
	PreparedAt          pgtype.Timestamptz
	PreparedBy          pgtype.UUID
}

// SetScreenItemsPreparationStatus moves every item of the order whose product
// belongs to the screen. No-op when no items match.
func (q *Queries) SetScreenItemsPreparationStatus(ctx context.Context, arg SetScreenItemsPreparationStatusParams) (int64, error) {
	const sql = `
		UPDATE order_items oi
		SET preparation_status = $3, prepared_at = $4, prepared_by = $5, status_changed_at = now()
		FROM products p
		WHERE p.id = oi.product_id
		  AND oi.order_id = $1
		  AND p.preparation_screen_id = $2`
	tag, err := q.db.Exec(ctx, sql,
		arg.OrderID, arg.PreparationScreenID, arg.Status, arg.PreparedAt, arg.PreparedBy)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListOrderItemScreens returns the distinct preparation screens named by the
// order's items' products. Products without a screen are skipped.
func (q *Queries) ListOrderItemScreens(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	const sql = `
		SELECT DISTINCT p.preparation_screen_id
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1 AND p.preparation_screen_id IS NOT NULL`
	rows, err := q.db.Query(ctx, sql, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var screens []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		screens = append(screens, id)
	}
	return screens, rows.Err()
}
