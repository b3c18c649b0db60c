package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// KitchenOrder is the full aggregate the kitchen display needs for one order:
// the order row plus the table/customer/delivery context, every item with its
// product, variant, modifiers, pizza customizations and preparer, and all
// screen-status rows.
type KitchenOrder struct {
	Order           Order
	AreaName        pgtype.Text
	TableName       pgtype.Text
	CustomerName    pgtype.Text
	CustomerPhone   pgtype.Text
	DeliveryAddress pgtype.Text
	DeliveryPhone   pgtype.Text
	Items           []KitchenOrderItem
	ScreenStatuses  []KitchenScreenStatus
}

type KitchenOrderItem struct {
	ID                  uuid.UUID
	OrderID             uuid.UUID
	ProductID           uuid.UUID
	ProductName         string
	PreparationScreenID pgtype.UUID
	VariantID           pgtype.UUID
	VariantName         pgtype.Text
	PreparationNotes    pgtype.Text
	PreparationStatus   string
	PreparedAt          pgtype.Timestamptz
	PreparedByName      pgtype.Text
	Modifiers           []KitchenItemModifier
	Customizations      []KitchenItemCustomization
}

type KitchenItemModifier struct {
	ModifierID uuid.UUID
	Name       string
}

type KitchenItemCustomization struct {
	PizzaCustomizationID uuid.UUID
	Name                 string
	Half                 string
	Action               string
}

type KitchenScreenStatus struct {
	PreparationScreenID uuid.UUID
	ScreenName          string
	Status              string
}

type ListKitchenOrdersParams struct {
	// OrderType restricts to one order type when set.
	OrderType pgtype.Text
	// ScreenID restricts to orders with at least one item on this screen
	// when set.
	ScreenID pgtype.UUID
}

// ListKitchenOrders is the single read path for kitchen tickets. It loads the
// candidate orders (open orders only, oldest first) and then batch-loads the
// item, modifier, customization and screen-status detail for the whole page.
func (q *Queries) ListKitchenOrders(ctx context.Context, arg ListKitchenOrdersParams) ([]KitchenOrder, error) {
	const ordersSQL = `
		SELECT o.` + orderColumnsQualified + `,
		       a.name, t.name, c.full_name, c.phone, di.full_address, di.recipient_phone
		FROM orders o
		LEFT JOIN tables t ON t.id = o.table_id
		LEFT JOIN areas a ON a.id = t.area_id
		LEFT JOIN customers c ON c.id = o.customer_id
		LEFT JOIN delivery_info di ON di.order_id = o.id
		WHERE o.order_status NOT IN ('COMPLETED', 'CANCELLED')
		  AND ($1::text IS NULL OR o.order_type = $1)
		  AND ($2::uuid IS NULL OR EXISTS (
				SELECT 1 FROM order_items oi
				JOIN products p ON p.id = oi.product_id
				WHERE oi.order_id = o.id AND p.preparation_screen_id = $2))
		ORDER BY o.created_at ASC`

	rows, err := q.db.Query(ctx, ordersSQL, arg.OrderType, arg.ScreenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []KitchenOrder
	byOrder := make(map[uuid.UUID]int)
	var orderIDs []uuid.UUID
	for rows.Next() {
		var ko KitchenOrder
		err := rows.Scan(
			&ko.Order.ID,
			&ko.Order.ShiftOrderNumber,
			&ko.Order.OrderType,
			&ko.Order.OrderStatus,
			&ko.Order.Notes,
			&ko.Order.TableID,
			&ko.Order.CustomerID,
			&ko.Order.Subtotal,
			&ko.Order.Total,
			&ko.Order.CreatedBy,
			&ko.Order.CreatedAt,
			&ko.Order.UpdatedAt,
			&ko.AreaName,
			&ko.TableName,
			&ko.CustomerName,
			&ko.CustomerPhone,
			&ko.DeliveryAddress,
			&ko.DeliveryPhone,
		)
		if err != nil {
			return nil, err
		}
		byOrder[ko.Order.ID] = len(orders)
		orderIDs = append(orderIDs, ko.Order.ID)
		orders = append(orders, ko)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	itemIndex, itemIDs, err := q.loadKitchenItems(ctx, orders, byOrder, orderIDs)
	if err != nil {
		return nil, err
	}
	if err := q.loadKitchenItemDetails(ctx, orders, itemIndex, itemIDs); err != nil {
		return nil, err
	}
	if err := q.loadKitchenScreenStatuses(ctx, orders, byOrder, orderIDs); err != nil {
		return nil, err
	}
	return orders, nil
}

const orderColumnsQualified = `id, o.shift_order_number, o.order_type, o.order_status, o.notes, o.table_id, o.customer_id, o.subtotal, o.total, o.created_by, o.created_at, o.updated_at`

// itemRef locates an item inside the orders slice.
type itemRef struct {
	order int
	item  int
}

func (q *Queries) loadKitchenItems(ctx context.Context, orders []KitchenOrder, byOrder map[uuid.UUID]int, orderIDs []uuid.UUID) (map[uuid.UUID]itemRef, []uuid.UUID, error) {
	const itemsSQL = `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, p.preparation_screen_id,
		       oi.variant_id, v.name, oi.preparation_notes, oi.preparation_status,
		       oi.prepared_at, u.full_name
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		LEFT JOIN product_variants v ON v.id = oi.variant_id
		LEFT JOIN users u ON u.id = oi.prepared_by
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.created_at, oi.id`

	rows, err := q.db.Query(ctx, itemsSQL, orderIDs)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	index := make(map[uuid.UUID]itemRef)
	var itemIDs []uuid.UUID
	for rows.Next() {
		var it KitchenOrderItem
		err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.ProductName,
			&it.PreparationScreenID,
			&it.VariantID,
			&it.VariantName,
			&it.PreparationNotes,
			&it.PreparationStatus,
			&it.PreparedAt,
			&it.PreparedByName,
		)
		if err != nil {
			return nil, nil, err
		}
		oi := byOrder[it.OrderID]
		index[it.ID] = itemRef{order: oi, item: len(orders[oi].Items)}
		itemIDs = append(itemIDs, it.ID)
		orders[oi].Items = append(orders[oi].Items, it)
	}
	return index, itemIDs, rows.Err()
}

func (q *Queries) loadKitchenItemDetails(ctx context.Context, orders []KitchenOrder, index map[uuid.UUID]itemRef, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return nil
	}

	const modifiersSQL = `
		SELECT oim.order_item_id, m.id, m.name
		FROM order_item_modifiers oim
		JOIN product_modifiers m ON m.id = oim.modifier_id
		WHERE oim.order_item_id = ANY($1)`
	rows, err := q.db.Query(ctx, modifiersSQL, itemIDs)
	if err != nil {
		return err
	}
	for rows.Next() {
		var itemID uuid.UUID
		var mod KitchenItemModifier
		if err := rows.Scan(&itemID, &mod.ModifierID, &mod.Name); err != nil {
			rows.Close()
			return err
		}
		ref := index[itemID]
		item := &orders[ref.order].Items[ref.item]
		item.Modifiers = append(item.Modifiers, mod)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	const customizationsSQL = `
		SELECT sc.order_item_id, pc.id, pc.name, sc.half, sc.action
		FROM selected_pizza_customizations sc
		JOIN pizza_customizations pc ON pc.id = sc.pizza_customization_id
		WHERE sc.order_item_id = ANY($1)`
	rows, err = q.db.Query(ctx, customizationsSQL, itemIDs)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID uuid.UUID
		var c KitchenItemCustomization
		if err := rows.Scan(&itemID, &c.PizzaCustomizationID, &c.Name, &c.Half, &c.Action); err != nil {
			return err
		}
		ref := index[itemID]
		item := &orders[ref.order].Items[ref.item]
		item.Customizations = append(item.Customizations, c)
	}
	return rows.Err()
}

func (q *Queries) loadKitchenScreenStatuses(ctx context.Context, orders []KitchenOrder, byOrder map[uuid.UUID]int, orderIDs []uuid.UUID) error {
	const statusesSQL = `
		SELECT s.order_id, s.preparation_screen_id, ps.name, s.status
		FROM order_preparation_screen_statuses s
		JOIN preparation_screens ps ON ps.id = s.preparation_screen_id
		WHERE s.order_id = ANY($1)`
	rows, err := q.db.Query(ctx, statusesSQL, orderIDs)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID uuid.UUID
		var ss KitchenScreenStatus
		if err := rows.Scan(&orderID, &ss.PreparationScreenID, &ss.ScreenName, &ss.Status); err != nil {
			return err
		}
		oi := byOrder[orderID]
		orders[oi].ScreenStatuses = append(orders[oi].ScreenStatuses, ss)
	}
	return rows.Err()
}
