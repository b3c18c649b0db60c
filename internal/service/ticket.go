package service

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
)

// Ticket is the flat kitchen view of one order. Exactly one of DineIn,
// TakeAway and Delivery is set, matching OrderType.
type Ticket struct {
	ID               uuid.UUID
	ShiftOrderNumber int32
	OrderType        string
	OrderStatus      string
	Notes            string
	CreatedAt        time.Time
	DineIn           *DineInInfo
	TakeAway         *TakeAwayInfo
	Delivery         *DeliveryDetails
	Items            []TicketItem
	ScreenStatuses   []TicketScreenStatus
	MyScreenStatus   string
	HasPendingItems  bool
}

type DineInInfo struct {
	AreaName  string
	TableName string
}

type TakeAwayInfo struct {
	CustomerName  string
	CustomerPhone string
}

type DeliveryDetails struct {
	Address string
	Phone   string
}

type TicketScreenStatus struct {
	ScreenID   uuid.UUID
	ScreenName string
	Status     string
}

// TicketItem is one displayed line: a group of identical order items.
type TicketItem struct {
	ItemIDs           string // comma-joined source item IDs
	ProductName       string
	VariantName       string
	ModifierNames     []string
	Customizations    []string
	PreparationNotes  string
	PreparationStatus string
	PreparedAt        *time.Time
	PreparedByName    string
	Quantity          int
	BelongsToMyScreen bool
}

// TicketOptions controls how an order is projected for one viewer.
type TicketOptions struct {
	// ViewerScreenID is the viewer's preparation screen; uuid.Nil means the
	// viewer has no assignment and sees every line as their own.
	ViewerScreenID  uuid.UUID
	ShowAllProducts bool
	Ungroup         bool
}

// BuildTicket maps a loaded kitchen order to its ticket view.
func BuildTicket(o database.KitchenOrder, opts TicketOptions) Ticket {
	t := Ticket{
		ID:               o.Order.ID,
		ShiftOrderNumber: o.Order.ShiftOrderNumber,
		OrderType:        o.Order.OrderType,
		OrderStatus:      o.Order.OrderStatus,
		CreatedAt:        o.Order.CreatedAt,
		MyScreenStatus:   enum.ScreenStatusPending,
	}
	if o.Order.Notes.Valid {
		t.Notes = o.Order.Notes.String
	}

	switch o.Order.OrderType {
	case enum.OrderTypeDelivery:
		t.Delivery = &DeliveryDetails{
			Address: o.DeliveryAddress.String,
			Phone:   o.DeliveryPhone.String,
		}
	case enum.OrderTypeTakeAway:
		t.TakeAway = &TakeAwayInfo{
			CustomerName:  o.CustomerName.String,
			CustomerPhone: o.CustomerPhone.String,
		}
	case enum.OrderTypeDineIn:
		t.DineIn = &DineInInfo{
			AreaName:  o.AreaName.String,
			TableName: o.TableName.String,
		}
	}

	for _, ss := range o.ScreenStatuses {
		t.ScreenStatuses = append(t.ScreenStatuses, TicketScreenStatus{
			ScreenID:   ss.PreparationScreenID,
			ScreenName: ss.ScreenName,
			Status:     ss.Status,
		})
		if opts.ViewerScreenID != uuid.Nil && ss.PreparationScreenID == opts.ViewerScreenID {
			t.MyScreenStatus = ss.Status
		}
	}

	for _, line := range groupItems(o.Items, opts.Ungroup) {
		mine := belongsToScreen(line.items[0], opts.ViewerScreenID)
		if mine && line.items[0].PreparationStatus != enum.PreparationStatusReady {
			t.HasPendingItems = true
		}
		if !mine && !opts.ShowAllProducts {
			continue
		}
		ti := buildTicketItem(line.items)
		ti.BelongsToMyScreen = mine
		t.Items = append(t.Items, ti)
	}

	return t
}

// belongsToScreen reports whether the item's product belongs to the viewer's
// screen. A viewer with no screen owns everything.
func belongsToScreen(it database.KitchenOrderItem, viewerScreenID uuid.UUID) bool {
	if viewerScreenID == uuid.Nil {
		return true
	}
	return it.PreparationScreenID.Valid &&
		uuid.UUID(it.PreparationScreenID.Bytes) == viewerScreenID
}

type itemGroup struct {
	key   string
	items []database.KitchenOrderItem
}

// groupItems collapses identical items into one line each, preserving first
// appearance order. With ungroup every item stays its own line.
func groupItems(items []database.KitchenOrderItem, ungroup bool) []itemGroup {
	var groups []itemGroup
	index := make(map[string]int)
	for i, it := range items {
		key := GroupingKey(it)
		if ungroup {
			// Item IDs are unique, so appending one makes every key distinct.
			key += "|" + it.ID.String()
		}
		gi, ok := index[key]
		if !ok {
			gi = len(groups)
			index[key] = gi
			groups = append(groups, itemGroup{key: key})
		}
		groups[gi].items = append(groups[gi].items, items[i])
	}
	return groups
}

// GroupingKey is the canonical identity under which identical order items
// collapse into one ticket line. Modifier and customization parts are sorted
// so the key does not depend on load order.
func GroupingKey(it database.KitchenOrderItem) string {
	variant := "-"
	if it.VariantID.Valid {
		variant = uuid.UUID(it.VariantID.Bytes).String()
	}
	notes := "-"
	if it.PreparationNotes.Valid {
		notes = it.PreparationNotes.String
	}

	modifiers := make([]string, len(it.Modifiers))
	for i, m := range it.Modifiers {
		modifiers[i] = m.ModifierID.String()
	}
	sort.Strings(modifiers)

	customizations := make([]string, len(it.Customizations))
	for i, c := range it.Customizations {
		customizations[i] = c.PizzaCustomizationID.String() + ":" + c.Half + ":" + c.Action
	}
	sort.Strings(customizations)

	return strings.Join([]string{
		it.ProductID.String(),
		variant,
		it.PreparationStatus,
		notes,
		strings.Join(modifiers, ","),
		strings.Join(customizations, ","),
	}, "|")
}

func buildTicketItem(items []database.KitchenOrderItem) TicketItem {
	first := items[0]

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID.String()
	}

	ti := TicketItem{
		ItemIDs:           strings.Join(ids, ","),
		ProductName:       first.ProductName,
		PreparationStatus: first.PreparationStatus,
		Quantity:          len(items),
	}
	if first.VariantName.Valid {
		ti.VariantName = first.VariantName.String
	}
	if first.PreparationNotes.Valid {
		ti.PreparationNotes = first.PreparationNotes.String
	}
	if first.PreparedAt.Valid {
		at := first.PreparedAt.Time
		ti.PreparedAt = &at
	}
	if first.PreparedByName.Valid {
		ti.PreparedByName = first.PreparedByName.String
	}
	for _, m := range first.Modifiers {
		ti.ModifierNames = append(ti.ModifierNames, m.Name)
	}
	for _, c := range first.Customizations {
		ti.Customizations = append(ti.Customizations, customizationSummary(c))
	}
	return ti
}

// customizationSummary renders one pizza customization for the ticket,
// e.g. "Pepperoni (HALF_1)" or "No Onion".
func customizationSummary(c database.KitchenItemCustomization) string {
	s := c.Name
	if c.Action == enum.CustomizationActionRemove {
		s = "No " + s
	}
	if c.Half != enum.PizzaHalfFull {
		s += " (" + c.Half + ")"
	}
	return s
}
