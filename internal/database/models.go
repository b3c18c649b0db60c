package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID                  uuid.UUID
	Email               string
	HashedPassword      string
	FullName            string
	Role                string
	PreparationScreenID pgtype.UUID
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type PreparationScreen struct {
	ID        uuid.UUID
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Area struct {
	ID   uuid.UUID
	Name string
}

type Table struct {
	ID     uuid.UUID
	AreaID uuid.UUID
	Name   string
}

type Customer struct {
	ID       uuid.UUID
	FullName string
	Phone    pgtype.Text
}

type Product struct {
	ID                  uuid.UUID
	Name                string
	BasePrice           pgtype.Numeric
	PreparationScreenID pgtype.UUID
	IsPizza             bool
	IsActive            bool
}

type ProductVariant struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	Name            string
	PriceAdjustment pgtype.Numeric
}

type ProductModifier struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     pgtype.Numeric
}

type PizzaCustomization struct {
	ID       uuid.UUID
	Name     string
	IsActive bool
}

type Order struct {
	ID               uuid.UUID
	ShiftOrderNumber int32
	OrderType        string
	OrderStatus      string
	Notes            pgtype.Text
	TableID          pgtype.UUID
	CustomerID       pgtype.UUID
	Subtotal         pgtype.Numeric
	Total            pgtype.Numeric
	CreatedBy        uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderItem is a single unit of a product. Quantity greater than one on a
// ticket comes from grouping identical items, not from a quantity column.
type OrderItem struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	ProductID         uuid.UUID
	VariantID         pgtype.UUID
	BasePrice         pgtype.Numeric
	FinalPrice        pgtype.Numeric
	PreparationNotes  pgtype.Text
	PreparationStatus string
	StatusChangedAt   time.Time
	PreparedAt        pgtype.Timestamptz
	PreparedBy        pgtype.UUID
	CreatedAt         time.Time
}

type OrderItemModifier struct {
	ID          uuid.UUID
	OrderItemID uuid.UUID
	ModifierID  uuid.UUID
}

type SelectedPizzaCustomization struct {
	ID                   uuid.UUID
	OrderItemID          uuid.UUID
	PizzaCustomizationID uuid.UUID
	Half                 string
	Action               string
}

type DeliveryInfo struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	FullAddress    pgtype.Text
	RecipientName  pgtype.Text
	RecipientPhone pgtype.Text
}

// OrderPreparationScreenStatus tracks how far along one preparation screen is
// on one order. At most one row exists per (order, screen) pair.
type OrderPreparationScreenStatus struct {
	ID                  uuid.UUID
	OrderID             uuid.UUID
	PreparationScreenID uuid.UUID
	Status              string
	StartedAt           pgtype.Timestamptz
	StartedBy           pgtype.UUID
	CompletedAt         pgtype.Timestamptz
	CompletedBy         pgtype.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
