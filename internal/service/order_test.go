package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
	commits     int
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore implements OrderStore with configurable behavior.
type mockOrderStore struct {
	getProductFn          func(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error)
	getVariantFn          func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error)
	getModifierFn         func(ctx context.Context, id uuid.UUID) (database.GetModifierForOrderRow, error)
	getCustomizationFn    func(ctx context.Context, id uuid.UUID) (database.PizzaCustomization, error)
	getNextShiftNumberFn  func(ctx context.Context) (int32, error)
	createOrderFn         func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn     func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	createItemModifierFn  func(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error)
	createCustomizationFn func(ctx context.Context, arg database.CreateSelectedPizzaCustomizationParams) (database.SelectedPizzaCustomization, error)
	createDeliveryInfoFn  func(ctx context.Context, arg database.CreateDeliveryInfoParams) (database.DeliveryInfo, error)
}

func (m *mockOrderStore) GetProductForOrder(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
	return m.getProductFn(ctx, id)
}
func (m *mockOrderStore) GetVariantForOrder(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
	return m.getVariantFn(ctx, id)
}
func (m *mockOrderStore) GetModifierForOrder(ctx context.Context, id uuid.UUID) (database.GetModifierForOrderRow, error) {
	return m.getModifierFn(ctx, id)
}
func (m *mockOrderStore) GetPizzaCustomization(ctx context.Context, id uuid.UUID) (database.PizzaCustomization, error) {
	return m.getCustomizationFn(ctx, id)
}
func (m *mockOrderStore) GetNextShiftOrderNumber(ctx context.Context) (int32, error) {
	return m.getNextShiftNumberFn(ctx)
}
func (m *mockOrderStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockOrderStore) CreateOrderItemModifier(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error) {
	return m.createItemModifierFn(ctx, arg)
}
func (m *mockOrderStore) CreateSelectedPizzaCustomization(ctx context.Context, arg database.CreateSelectedPizzaCustomizationParams) (database.SelectedPizzaCustomization, error) {
	return m.createCustomizationFn(ctx, arg)
}
func (m *mockOrderStore) CreateDeliveryInfo(ctx context.Context, arg database.CreateDeliveryInfoParams) (database.DeliveryInfo, error) {
	return m.createDeliveryInfoFn(ctx, arg)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	d, err := decimal.NewFromString(val)
	if err != nil {
		panic(err)
	}
	return decimalToNumeric(d)
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	exp, _ := decimal.NewFromString(expected)
	return numericToDecimal(n).Equal(exp)
}

// newTestOrderService creates an OrderService with mocked dependencies.
func newTestOrderService(store *mockOrderStore) (*OrderService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, newStore), tx
}

// defaultOrderStore returns a mockOrderStore with sensible defaults for a
// basic order. Individual tests override the functions they care about.
func defaultOrderStore(productID, screenID uuid.UUID) *mockOrderStore {
	return &mockOrderStore{
		getProductFn: func(ctx context.Context, id uuid.UUID) (database.GetProductForOrderRow, error) {
			if id == productID {
				return database.GetProductForOrderRow{
					ID:                  productID,
					Name:                "Burger",
					BasePrice:           makeNumeric("95.00"),
					PreparationScreenID: pgtype.UUID{Bytes: screenID, Valid: true},
				}, nil
			}
			return database.GetProductForOrderRow{}, pgx.ErrNoRows
		},
		getVariantFn: func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
			return database.GetVariantForOrderRow{}, pgx.ErrNoRows
		},
		getModifierFn: func(ctx context.Context, id uuid.UUID) (database.GetModifierForOrderRow, error) {
			return database.GetModifierForOrderRow{}, pgx.ErrNoRows
		},
		getCustomizationFn: func(ctx context.Context, id uuid.UUID) (database.PizzaCustomization, error) {
			return database.PizzaCustomization{}, pgx.ErrNoRows
		},
		getNextShiftNumberFn: func(ctx context.Context) (int32, error) {
			return 1, nil
		},
		createOrderFn: func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
			return database.Order{
				ID:               uuid.New(),
				ShiftOrderNumber: arg.ShiftOrderNumber,
				OrderType:        arg.OrderType,
				OrderStatus:      enum.OrderStatusPending,
				Notes:            arg.Notes,
				TableID:          arg.TableID,
				CustomerID:       arg.CustomerID,
				Subtotal:         arg.Subtotal,
				Total:            arg.Total,
				CreatedBy:        arg.CreatedBy,
			}, nil
		},
		createOrderItemFn: func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
			return database.OrderItem{
				ID:                uuid.New(),
				OrderID:           arg.OrderID,
				ProductID:         arg.ProductID,
				VariantID:         arg.VariantID,
				BasePrice:         arg.BasePrice,
				FinalPrice:        arg.FinalPrice,
				PreparationNotes:  arg.PreparationNotes,
				PreparationStatus: enum.PreparationStatusPending,
			}, nil
		},
		createItemModifierFn: func(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error) {
			return database.OrderItemModifier{
				ID:          uuid.New(),
				OrderItemID: arg.OrderItemID,
				ModifierID:  arg.ModifierID,
			}, nil
		},
		createCustomizationFn: func(ctx context.Context, arg database.CreateSelectedPizzaCustomizationParams) (database.SelectedPizzaCustomization, error) {
			return database.SelectedPizzaCustomization{
				ID:                   uuid.New(),
				OrderItemID:          arg.OrderItemID,
				PizzaCustomizationID: arg.PizzaCustomizationID,
				Half:                 arg.Half,
				Action:               arg.Action,
			}, nil
		},
		createDeliveryInfoFn: func(ctx context.Context, arg database.CreateDeliveryInfoParams) (database.DeliveryInfo, error) {
			return database.DeliveryInfo{ID: uuid.New(), OrderID: arg.OrderID}, nil
		},
	}
}

func takeAwayReq(productID uuid.UUID, quantity int) CreateOrderRequest {
	return CreateOrderRequest{
		OrderType: enum.OrderTypeTakeAway,
		CreatedBy: uuid.New(),
		Items: []CreateOrderItemRequest{
			{ProductID: productID, Quantity: quantity},
		},
	}
}

// =====================
// Validation tests
// =====================

func TestCreateOrder_EmptyItems(t *testing.T) {
	svc, _ := newTestOrderService(defaultOrderStore(uuid.New(), uuid.New()))

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		OrderType: enum.OrderTypeTakeAway,
		CreatedBy: uuid.New(),
	})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got: %v", err)
	}
}

func TestCreateOrder_InvalidOrderType(t *testing.T) {
	productID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(productID, uuid.New()))

	req := takeAwayReq(productID, 1)
	req.OrderType = "DRIVE_THROUGH"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidOrderType) {
		t.Fatalf("expected ErrInvalidOrderType, got: %v", err)
	}
}

func TestCreateOrder_ZeroQuantity(t *testing.T) {
	productID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(productID, uuid.New()))

	_, err := svc.CreateOrder(context.Background(), takeAwayReq(productID, 0))
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestCreateOrder_DineInWithoutTable(t *testing.T) {
	productID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(productID, uuid.New()))

	req := takeAwayReq(productID, 1)
	req.OrderType = enum.OrderTypeDineIn
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrTableRequired) {
		t.Fatalf("expected ErrTableRequired, got: %v", err)
	}
}

func TestCreateOrder_DeliveryWithoutAddress(t *testing.T) {
	productID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(productID, uuid.New()))

	req := takeAwayReq(productID, 1)
	req.OrderType = enum.OrderTypeDelivery
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrDeliveryInfoRequired) {
		t.Fatalf("expected ErrDeliveryInfoRequired, got: %v", err)
	}
}

func TestCreateOrder_ProductNotFound(t *testing.T) {
	svc, _ := newTestOrderService(defaultOrderStore(uuid.New(), uuid.New()))

	_, err := svc.CreateOrder(context.Background(), takeAwayReq(uuid.New(), 1))
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestCreateOrder_VariantMismatch(t *testing.T) {
	productID := uuid.New()
	variantID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())
	store.getVariantFn = func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
		return database.GetVariantForOrderRow{
			ID:        variantID,
			ProductID: uuid.New(), // belongs to a different product
			Name:      "Large",
		}, nil
	}
	svc, _ := newTestOrderService(store)

	req := takeAwayReq(productID, 1)
	req.Items[0].VariantID = &variantID
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrVariantMismatch) {
		t.Fatalf("expected ErrVariantMismatch, got: %v", err)
	}
}

func TestCreateOrder_ModifierMismatch(t *testing.T) {
	productID := uuid.New()
	modifierID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())
	store.getModifierFn = func(ctx context.Context, id uuid.UUID) (database.GetModifierForOrderRow, error) {
		return database.GetModifierForOrderRow{
			ID:        modifierID,
			ProductID: uuid.New(),
			Name:      "Extra cheese",
			Price:     makeNumeric("15.00"),
		}, nil
	}
	svc, _ := newTestOrderService(store)

	req := takeAwayReq(productID, 1)
	req.Items[0].ModifierIDs = []uuid.UUID{modifierID}
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrModifierMismatch) {
		t.Fatalf("expected ErrModifierMismatch, got: %v", err)
	}
}

func TestCreateOrder_CustomizationOnNonPizza(t *testing.T) {
	productID := uuid.New()
	svc, _ := newTestOrderService(defaultOrderStore(productID, uuid.New()))

	req := takeAwayReq(productID, 1)
	req.Items[0].Customizations = []CustomizationRequest{
		{PizzaCustomizationID: uuid.New(), Half: enum.PizzaHalfFull, Action: enum.CustomizationActionAdd},
	}
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrNotPizza) {
		t.Fatalf("expected ErrNotPizza, got: %v", err)
	}
}

// =====================
// Creation tests
// =====================

func TestCreateOrder_QuantityExpandsToRows(t *testing.T) {
	productID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())

	var itemInserts int
	base := store.createOrderItemFn
	store.createOrderItemFn = func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
		itemInserts++
		return base(ctx, arg)
	}
	svc, tx := newTestOrderService(store)

	result, err := svc.CreateOrder(context.Background(), takeAwayReq(productID, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if itemInserts != 3 {
		t.Fatalf("expected 3 item rows, got %d", itemInserts)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 items in result, got %d", len(result.Items))
	}
	if tx.commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", tx.commits)
	}
}

func TestCreateOrder_SubtotalIncludesVariantAndModifiers(t *testing.T) {
	productID := uuid.New()
	variantID := uuid.New()
	modifierID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())
	store.getVariantFn = func(ctx context.Context, id uuid.UUID) (database.GetVariantForOrderRow, error) {
		return database.GetVariantForOrderRow{
			ID:              variantID,
			ProductID:       productID,
			Name:            "Large",
			PriceAdjustment: makeNumeric("60.00"),
		}, nil
	}
	store.getModifierFn = func(ctx context.Context, id uuid.UUID) (database.GetModifierForOrderRow, error) {
		return database.GetModifierForOrderRow{
			ID:        modifierID,
			ProductID: productID,
			Name:      "Extra cheese",
			Price:     makeNumeric("15.00"),
		}, nil
	}

	var gotSubtotal pgtype.Numeric
	base := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		gotSubtotal = arg.Subtotal
		return base(ctx, arg)
	}
	svc, _ := newTestOrderService(store)

	req := takeAwayReq(productID, 2)
	req.Items[0].VariantID = &variantID
	req.Items[0].ModifierIDs = []uuid.UUID{modifierID}
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// (95 + 60 + 15) * 2 = 340
	if !numericEquals(gotSubtotal, "340.00") {
		t.Fatalf("expected subtotal 340.00, got %v", numericToDecimal(gotSubtotal))
	}
}

func TestCreateOrder_DeliveryCreatesDeliveryInfo(t *testing.T) {
	productID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())

	var gotAddress string
	base := store.createDeliveryInfoFn
	store.createDeliveryInfoFn = func(ctx context.Context, arg database.CreateDeliveryInfoParams) (database.DeliveryInfo, error) {
		gotAddress = arg.FullAddress.String
		return base(ctx, arg)
	}
	svc, _ := newTestOrderService(store)

	req := takeAwayReq(productID, 1)
	req.OrderType = enum.OrderTypeDelivery
	req.Delivery = &DeliveryRequest{FullAddress: "123 Elm St", RecipientPhone: "5551234"}
	if _, err := svc.CreateOrder(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddress != "123 Elm St" {
		t.Fatalf("expected delivery info insert, got address %q", gotAddress)
	}
}

func TestCreateOrder_RetriesOnShiftNumberConflict(t *testing.T) {
	productID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())

	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "orders_shift_order_number_key"}
	attempts := 0
	base := store.createOrderFn
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		attempts++
		if attempts == 1 {
			return database.Order{}, conflict
		}
		return base(ctx, arg)
	}
	svc, _ := newTestOrderService(store)

	result, err := svc.CreateOrder(context.Background(), takeAwayReq(productID, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if result.Order.ShiftOrderNumber != 1 {
		t.Fatalf("expected shift number 1, got %d", result.Order.ShiftOrderNumber)
	}
}

func TestCreateOrder_GivesUpAfterRepeatedConflicts(t *testing.T) {
	productID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())

	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "orders_shift_order_number_key"}
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		return database.Order{}, conflict
	}
	svc, _ := newTestOrderService(store)

	_, err := svc.CreateOrder(context.Background(), takeAwayReq(productID, 1))
	if err == nil {
		t.Fatal("expected error after repeated conflicts")
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected wrapped pg error, got: %v", err)
	}
}

func TestCreateOrder_OtherConstraintNotRetried(t *testing.T) {
	productID := uuid.New()
	store := defaultOrderStore(productID, uuid.New())

	attempts := 0
	store.createOrderFn = func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
		attempts++
		return database.Order{}, &pgconn.PgError{Code: "23503", ConstraintName: "orders_table_id_fkey"}
	}
	svc, _ := newTestOrderService(store)

	if _, err := svc.CreateOrder(context.Background(), takeAwayReq(productID, 1)); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected no retry, got %d attempts", attempts)
	}
}
