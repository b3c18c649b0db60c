package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, shift_order_number, order_type, order_status, notes, table_id, customer_id, subtotal, total, created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.ShiftOrderNumber,
		&o.OrderType,
		&o.OrderStatus,
		&o.Notes,
		&o.TableID,
		&o.CustomerID,
		&o.Subtotal,
		&o.Total,
		&o.CreatedBy,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// GetNextShiftOrderNumber returns MAX+1 of today's shift numbers. Concurrent
// callers can read the same value; the unique index on
// (shift_order_number, created_at::date) rejects the loser, which the order
// service handles by retrying.
func (q *Queries) GetNextShiftOrderNumber(ctx context.Context) (int32, error) {
	const sql = `
		SELECT COALESCE(MAX(shift_order_number), 0) + 1
		FROM orders WHERE created_at::date = CURRENT_DATE`
	var next int32
	err := q.db.QueryRow(ctx, sql).Scan(&next)
	return next, err
}

type CreateOrderParams struct {
	ShiftOrderNumber int32
	OrderType        string
	Notes            pgtype.Text
	TableID          pgtype.UUID
	CustomerID       pgtype.UUID
	Subtotal         pgtype.Numeric
	Total            pgtype.Numeric
	CreatedBy        uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	const sql = `
		INSERT INTO orders (shift_order_number, order_type, notes, table_id, customer_id, subtotal, total, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql,
		arg.ShiftOrderNumber, arg.OrderType, arg.Notes, arg.TableID,
		arg.CustomerID, arg.Subtotal, arg.Total, arg.CreatedBy))
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	const sql = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(q.db.QueryRow(ctx, sql, id))
}

type ListOrdersParams struct {
	Status    pgtype.Text
	OrderType pgtype.Text
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	const sql = `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR order_status = $1)
		  AND ($2::text IS NULL OR order_type = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`
	rows, err := q.db.Query(ctx, sql, arg.Status, arg.OrderType, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID          uuid.UUID
	OrderStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	const sql = `
		UPDATE orders SET order_status = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + orderColumns
	return scanOrder(q.db.QueryRow(ctx, sql, arg.ID, arg.OrderStatus))
}

type CreateDeliveryInfoParams struct {
	OrderID        uuid.UUID
	FullAddress    pgtype.Text
	RecipientName  pgtype.Text
	RecipientPhone pgtype.Text
}

func (q *Queries) CreateDeliveryInfo(ctx context.Context, arg CreateDeliveryInfoParams) (DeliveryInfo, error) {
	const sql = `
		INSERT INTO delivery_info (order_id, full_address, recipient_name, recipient_phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_id, full_address, recipient_name, recipient_phone`
	var di DeliveryInfo
	err := q.db.QueryRow(ctx, sql,
		arg.OrderID, arg.FullAddress, arg.RecipientName, arg.RecipientPhone,
	).Scan(&di.ID, &di.OrderID, &di.FullAddress, &di.RecipientName, &di.RecipientPhone)
	return di, err
}
