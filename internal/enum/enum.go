package enum

// ── State machines (CHECK constrained in DB) ──

// Order status is derived from the per-screen preparation tracks while the
// order sits in the kitchen; DELIVERED/COMPLETED/CANCELLED come from the
// cashier workflow.
const (
	OrderStatusPending       = "PENDING"
	OrderStatusInProgress    = "IN_PROGRESS"
	OrderStatusInPreparation = "IN_PREPARATION"
	OrderStatusReady         = "READY"
	OrderStatusDelivered     = "DELIVERED"
	OrderStatusCompleted     = "COMPLETED"
	OrderStatusCancelled     = "CANCELLED"
)

const (
	PreparationStatusPending    = "PENDING"
	PreparationStatusInProgress = "IN_PROGRESS"
	PreparationStatusReady      = "READY"
	PreparationStatusDelivered  = "DELIVERED"
	PreparationStatusCancelled  = "CANCELLED"
)

const (
	ScreenStatusPending       = "PENDING"
	ScreenStatusInPreparation = "IN_PREPARATION"
	ScreenStatusReady         = "READY"
)

// ── Classifications (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

const (
	OrderTypeDineIn   = "DINE_IN"
	OrderTypeTakeAway = "TAKE_AWAY"
	OrderTypeDelivery = "DELIVERY"
)

// ── Pizza customizations ──

const (
	PizzaHalfFull = "FULL"
	PizzaHalfOne  = "HALF_1"
	PizzaHalfTwo  = "HALF_2"
)

const (
	CustomizationActionAdd    = "ADD"
	CustomizationActionRemove = "REMOVE"
)
