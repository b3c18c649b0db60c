package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
)

// Errors returned by the order service.
var (
	ErrProductNotFound       = errors.New("product not found")
	ErrVariantNotFound       = errors.New("variant not found")
	ErrVariantMismatch       = errors.New("variant does not belong to product")
	ErrModifierNotFound      = errors.New("modifier not found")
	ErrModifierMismatch      = errors.New("modifier does not belong to product")
	ErrCustomizationNotFound = errors.New("pizza customization not found")
	ErrNotPizza              = errors.New("product does not accept pizza customizations")
	ErrTableRequired         = errors.New("table is required for dine-in orders")
	ErrDeliveryInfoRequired  = errors.New("delivery address is required for delivery orders")
	ErrEmptyOrder            = errors.New("order has no items")
	ErrInvalidOrderType      = errors.New("invalid order type")
	ErrInvalidQuantity       = errors.New("quantity must be at least 1")
)

// TxBeginner starts pgx transactions. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
type OrderStore interface {
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
	GetVariantForOrder(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error)
	GetModifierForOrder(ctx context.Context, id uuid.UUID) (database.GetModifierForOrderRow, error)
	GetPizzaCustomization(ctx context.Context, id uuid.UUID) (database.PizzaCustomization, error)
	GetNextShiftOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemModifier(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error)
	CreateSelectedPizzaCustomization(ctx context.Context, arg database.CreateSelectedPizzaCustomizationParams) (database.SelectedPizzaCustomization, error)
	CreateDeliveryInfo(ctx context.Context, arg database.CreateDeliveryInfoParams) (database.DeliveryInfo, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// OrderService handles order creation.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrderItemRequest is one product line in a new order. Quantity expands
// into that many order item rows so each unit tracks its own preparation.
type CreateOrderItemRequest struct {
	ProductID        uuid.UUID
	VariantID        *uuid.UUID
	Quantity         int
	PreparationNotes string
	ModifierIDs      []uuid.UUID
	Customizations   []CustomizationRequest
}

// CustomizationRequest is one pizza customization selection on an item.
type CustomizationRequest struct {
	PizzaCustomizationID uuid.UUID
	Half                 string
	Action               string
}

// CreateOrderRequest is the validated input for order creation.
type CreateOrderRequest struct {
	OrderType  string
	Notes      string
	TableID    *uuid.UUID
	CustomerID *uuid.UUID
	Delivery   *DeliveryRequest
	Items      []CreateOrderItemRequest
	CreatedBy  uuid.UUID
}

// DeliveryRequest carries the destination for DELIVERY orders.
type DeliveryRequest struct {
	FullAddress    string
	RecipientName  string
	RecipientPhone string
}

// CreateOrderResult is the created order plus its expanded item rows.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

const maxShiftNumberRetries = 3

// CreateOrder validates the request, prices the items, and inserts the order
// with one item row per unit. The per-day shift number is MAX+1 under a
// unique index, so a concurrent insert can collide; the whole transaction is
// retried on that conflict.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	var result *CreateOrderResult
	var err error
	for attempt := 0; attempt < maxShiftNumberRetries; attempt++ {
		result, err = s.tryCreateOrder(ctx, req)
		if err == nil {
			return result, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "orders_shift_order_number_key" {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("create order: shift number conflict after %d attempts: %w", maxShiftNumberRetries, err)
}

func validateOrderRequest(req CreateOrderRequest) error {
	switch req.OrderType {
	case enum.OrderTypeDineIn:
		if req.TableID == nil {
			return ErrTableRequired
		}
	case enum.OrderTypeDelivery:
		if req.Delivery == nil || req.Delivery.FullAddress == "" {
			return ErrDeliveryInfoRequired
		}
	case enum.OrderTypeTakeAway:
	default:
		return ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return ErrEmptyOrder
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	return nil
}

func (s *OrderService) tryCreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	lines, subtotal, err := s.priceItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}

	shiftNumber, err := store.GetNextShiftOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("next shift number: %w", err)
	}

	params := database.CreateOrderParams{
		ShiftOrderNumber: shiftNumber,
		OrderType:        req.OrderType,
		Subtotal:         decimalToNumeric(subtotal),
		Total:            decimalToNumeric(subtotal),
		CreatedBy:        req.CreatedBy,
	}
	if req.Notes != "" {
		params.Notes = pgtype.Text{String: req.Notes, Valid: true}
	}
	if req.TableID != nil {
		params.TableID = pgtype.UUID{Bytes: *req.TableID, Valid: true}
	}
	if req.CustomerID != nil {
		params.CustomerID = pgtype.UUID{Bytes: *req.CustomerID, Valid: true}
	}

	order, err := store.CreateOrder(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	var items []database.OrderItem
	for _, line := range lines {
		// One row per unit: the kitchen flips each unit independently.
		for i := 0; i < line.quantity; i++ {
			item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
				OrderID:          order.ID,
				ProductID:        line.productID,
				VariantID:        line.variantID,
				BasePrice:        decimalToNumeric(line.basePrice),
				FinalPrice:       decimalToNumeric(line.finalPrice),
				PreparationNotes: line.notes,
			})
			if err != nil {
				return nil, fmt.Errorf("insert order item: %w", err)
			}
			for _, modID := range line.modifierIDs {
				if _, err := store.CreateOrderItemModifier(ctx, database.CreateOrderItemModifierParams{
					OrderItemID: item.ID,
					ModifierID:  modID,
				}); err != nil {
					return nil, fmt.Errorf("insert item modifier: %w", err)
				}
			}
			for _, c := range line.customizations {
				if _, err := store.CreateSelectedPizzaCustomization(ctx, database.CreateSelectedPizzaCustomizationParams{
					OrderItemID:          item.ID,
					PizzaCustomizationID: c.PizzaCustomizationID,
					Half:                 c.Half,
					Action:               c.Action,
				}); err != nil {
					return nil, fmt.Errorf("insert item customization: %w", err)
				}
			}
			items = append(items, item)
		}
	}

	if req.OrderType == enum.OrderTypeDelivery {
		info := database.CreateDeliveryInfoParams{
			OrderID:     order.ID,
			FullAddress: pgtype.Text{String: req.Delivery.FullAddress, Valid: true},
		}
		if req.Delivery.RecipientName != "" {
			info.RecipientName = pgtype.Text{String: req.Delivery.RecipientName, Valid: true}
		}
		if req.Delivery.RecipientPhone != "" {
			info.RecipientPhone = pgtype.Text{String: req.Delivery.RecipientPhone, Valid: true}
		}
		if _, err := store.CreateDeliveryInfo(ctx, info); err != nil {
			return nil, fmt.Errorf("insert delivery info: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Items: items}, nil
}

type pricedLine struct {
	productID      uuid.UUID
	variantID      pgtype.UUID
	quantity       int
	basePrice      decimal.Decimal
	finalPrice     decimal.Decimal
	notes          pgtype.Text
	modifierIDs    []uuid.UUID
	customizations []CustomizationRequest
}

// priceItems resolves and validates products, variants, modifiers, and
// customizations, returning priced lines and the order subtotal.
func (s *OrderService) priceItems(ctx context.Context, store OrderStore, items []CreateOrderItemRequest) ([]pricedLine, decimal.Decimal, error) {
	var lines []pricedLine
	subtotal := decimal.Zero

	for _, it := range items {
		product, err := store.GetProductForOrder(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, ErrProductNotFound
			}
			return nil, decimal.Zero, fmt.Errorf("get product: %w", err)
		}

		line := pricedLine{
			productID:      product.ID,
			quantity:       it.Quantity,
			basePrice:      numericToDecimal(product.BasePrice),
			modifierIDs:    it.ModifierIDs,
			customizations: it.Customizations,
		}
		if it.PreparationNotes != "" {
			line.notes = pgtype.Text{String: it.PreparationNotes, Valid: true}
		}

		unitPrice := line.basePrice
		if it.VariantID != nil {
			variant, err := store.GetVariantForOrder(ctx, *it.VariantID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, ErrVariantNotFound
				}
				return nil, decimal.Zero, fmt.Errorf("get variant: %w", err)
			}
			if variant.ProductID != product.ID {
				return nil, decimal.Zero, ErrVariantMismatch
			}
			line.variantID = pgtype.UUID{Bytes: variant.ID, Valid: true}
			unitPrice = unitPrice.Add(numericToDecimal(variant.PriceAdjustment))
		}

		for _, modID := range it.ModifierIDs {
			modifier, err := store.GetModifierForOrder(ctx, modID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, ErrModifierNotFound
				}
				return nil, decimal.Zero, fmt.Errorf("get modifier: %w", err)
			}
			if modifier.ProductID != product.ID {
				return nil, decimal.Zero, ErrModifierMismatch
			}
			unitPrice = unitPrice.Add(numericToDecimal(modifier.Price))
		}

		if len(it.Customizations) > 0 && !product.IsPizza {
			return nil, decimal.Zero, ErrNotPizza
		}
		for _, c := range it.Customizations {
			if _, err := store.GetPizzaCustomization(ctx, c.PizzaCustomizationID); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, decimal.Zero, ErrCustomizationNotFound
				}
				return nil, decimal.Zero, fmt.Errorf("get pizza customization: %w", err)
			}
		}

		line.finalPrice = unitPrice
		subtotal = subtotal.Add(unitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		lines = append(lines, line)
	}

	return lines, subtotal, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   new(big.Int).Set(d.Coefficient()),
		Exp:   d.Exponent(),
		Valid: true,
	}
}
