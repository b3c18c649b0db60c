package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/middleware"
	"github.com/viefmoon/bite-api/internal/service"
	"github.com/viefmoon/bite-api/internal/ws"
)

// KitchenServicer defines the service methods needed by kitchen handlers.
// Satisfied by *service.KitchenService; narrow interface for testability.
type KitchenServicer interface {
	ListOrders(ctx context.Context, req service.ListKitchenOrdersRequest) ([]service.Ticket, error)
	MyScreen(ctx context.Context, userID uuid.UUID) (*service.ScreenInfo, error)
	StartPreparation(ctx context.Context, orderID, userID uuid.UUID) (*database.OrderPreparationScreenStatus, error)
	CompletePreparation(ctx context.Context, orderID, userID uuid.UUID) (*database.OrderPreparationScreenStatus, error)
	CancelPreparation(ctx context.Context, orderID, userID uuid.UUID) (*database.OrderPreparationScreenStatus, error)
}

// ItemServicer defines the item toggling methods needed by kitchen handlers.
// Satisfied by *service.ItemPreparationService.
type ItemServicer interface {
	MarkItemPrepared(ctx context.Context, itemKey string, userID uuid.UUID, prepared bool) error
}

// KitchenHandler handles the kitchen display endpoints.
type KitchenHandler struct {
	svc   KitchenServicer
	items ItemServicer
	hub   *ws.Hub
}

// NewKitchenHandler creates a new KitchenHandler. hub may be nil in tests.
func NewKitchenHandler(svc KitchenServicer, items ItemServicer, hub *ws.Hub) *KitchenHandler {
	return &KitchenHandler{svc: svc, items: items, hub: hub}
}

// RegisterRoutes registers kitchen endpoints on the given Chi router.
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.ListOrders)
	r.Get("/my-screen", h.MyScreen)
	r.Patch("/items/{ids}/prepared", h.MarkPrepared)
	r.Patch("/items/{ids}/unprepared", h.MarkUnprepared)
	r.Patch("/orders/{id}/start-preparation", h.StartPreparation)
	r.Patch("/orders/{id}/complete-preparation", h.CompletePreparation)
	r.Patch("/orders/{id}/cancel-preparation", h.CancelPreparation)
}

// --- Response types ---

type ticketResponse struct {
	ID               uuid.UUID              `json:"id"`
	ShiftOrderNumber int32                  `json:"shift_order_number"`
	OrderType        string                 `json:"order_type"`
	OrderStatus      string                 `json:"order_status"`
	Notes            string                 `json:"notes,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	DineIn           *dineInResponse        `json:"dine_in,omitempty"`
	TakeAway         *takeAwayResponse      `json:"take_away,omitempty"`
	Delivery         *deliveryResponse      `json:"delivery,omitempty"`
	Items            []ticketItemResponse   `json:"items"`
	ScreenStatuses   []screenStatusResponse `json:"screen_statuses"`
	MyScreenStatus   string                 `json:"my_screen_status"`
	HasPendingItems  bool                   `json:"has_pending_items"`
}

type dineInResponse struct {
	AreaName  string `json:"area_name"`
	TableName string `json:"table_name"`
}

type takeAwayResponse struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone,omitempty"`
}

type deliveryResponse struct {
	Address string `json:"address"`
	Phone   string `json:"phone,omitempty"`
}

type screenStatusResponse struct {
	ScreenID   uuid.UUID `json:"screen_id"`
	ScreenName string    `json:"screen_name"`
	Status     string    `json:"status"`
}

type ticketItemResponse struct {
	ItemIDs           string     `json:"item_ids"`
	ProductName       string     `json:"product_name"`
	VariantName       string     `json:"variant_name,omitempty"`
	ModifierNames     []string   `json:"modifier_names,omitempty"`
	Customizations    []string   `json:"customizations,omitempty"`
	PreparationNotes  string     `json:"preparation_notes,omitempty"`
	PreparationStatus string     `json:"preparation_status"`
	PreparedAt        *time.Time `json:"prepared_at"`
	PreparedByName    string     `json:"prepared_by_name,omitempty"`
	Quantity          int        `json:"quantity"`
	BelongsToMyScreen bool       `json:"belongs_to_my_screen"`
}

type myScreenResponse struct {
	ScreenID   *uuid.UUID `json:"screen_id"`
	ScreenName string     `json:"screen_name,omitempty"`
}

type preparationEventPayload struct {
	OrderID  uuid.UUID `json:"order_id"`
	ScreenID uuid.UUID `json:"screen_id"`
	Status   string    `json:"status"`
}

// --- Handlers ---

// ListOrders handles GET /kitchen/orders.
func (h *KitchenHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	q := r.URL.Query()
	req := service.ListKitchenOrdersRequest{
		UserID:          claims.UserID,
		OrderType:       q.Get("order_type"),
		ShowPrepared:    q.Get("show_prepared") == "true",
		ShowAllProducts: q.Get("show_all_products") == "true",
		UngroupProducts: q.Get("ungroup_products") == "true",
	}
	if s := q.Get("screen_id"); s != "" {
		screenID, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid screen_id"})
			return
		}
		req.ScreenID = screenID
	}

	tickets, err := h.svc.ListOrders(r.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: list kitchen orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]ticketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = ticketToResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// MyScreen handles GET /kitchen/my-screen.
func (h *KitchenHandler) MyScreen(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	screen, err := h.svc.MyScreen(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: get my screen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := myScreenResponse{}
	if screen != nil {
		resp.ScreenID = &screen.ID
		resp.ScreenName = screen.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkPrepared handles PATCH /kitchen/items/{ids}/prepared.
func (h *KitchenHandler) MarkPrepared(w http.ResponseWriter, r *http.Request) {
	h.toggleItems(w, r, true)
}

// MarkUnprepared handles PATCH /kitchen/items/{ids}/unprepared.
func (h *KitchenHandler) MarkUnprepared(w http.ResponseWriter, r *http.Request) {
	h.toggleItems(w, r, false)
}

func (h *KitchenHandler) toggleItems(w http.ResponseWriter, r *http.Request, prepared bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemKey := chi.URLParam(r, "ids")
	if err := h.items.MarkItemPrepared(r.Context(), itemKey, claims.UserID, prepared); err != nil {
		status, msg := itemErrorToHTTP(err)
		if status == http.StatusInternalServerError {
			log.Printf("ERROR: mark items prepared=%v: %v", prepared, err)
		}
		writeJSON(w, status, map[string]string{"error": msg})
		return
	}

	if h.hub != nil {
		payload, err := json.Marshal(map[string]any{"item_ids": itemKey, "prepared": prepared})
		if err == nil {
			h.hub.BroadcastAll(ws.Event{Type: "kitchen.items_toggled", Payload: payload})
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// StartPreparation handles PATCH /kitchen/orders/{id}/start-preparation.
func (h *KitchenHandler) StartPreparation(w http.ResponseWriter, r *http.Request) {
	h.screenTransition(w, r, h.svc.StartPreparation, "kitchen.preparation_started")
}

// CompletePreparation handles PATCH /kitchen/orders/{id}/complete-preparation.
func (h *KitchenHandler) CompletePreparation(w http.ResponseWriter, r *http.Request) {
	h.screenTransition(w, r, h.svc.CompletePreparation, "kitchen.preparation_completed")
}

// CancelPreparation handles PATCH /kitchen/orders/{id}/cancel-preparation.
func (h *KitchenHandler) CancelPreparation(w http.ResponseWriter, r *http.Request) {
	h.screenTransition(w, r, h.svc.CancelPreparation, "kitchen.preparation_cancelled")
}

func (h *KitchenHandler) screenTransition(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, orderID, userID uuid.UUID) (*database.OrderPreparationScreenStatus, error),
	eventType string,
) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	ss, err := fn(r.Context(), orderID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrUserNotFound):
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
		case errors.Is(err, service.ErrNoScreenAssigned):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "user has no preparation screen assigned"})
		default:
			log.Printf("ERROR: screen transition %s: %v", eventType, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	if h.hub != nil && ss.OrderID != uuid.Nil {
		payload, err := json.Marshal(preparationEventPayload{
			OrderID:  ss.OrderID,
			ScreenID: ss.PreparationScreenID,
			Status:   ss.Status,
		})
		if err == nil {
			h.hub.BroadcastToScreen(ss.PreparationScreenID, ws.Event{Type: eventType, Payload: payload})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":  orderID,
		"screen_id": ss.PreparationScreenID,
		"status":    ss.Status,
	})
}

// itemErrorToHTTP maps item preparation service errors to responses.
func itemErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidItemKey):
		return http.StatusBadRequest, "invalid item ids"
	case errors.Is(err, service.ErrItemsNotFound):
		return http.StatusNotFound, "one or more items not found"
	case errors.Is(err, service.ErrItemsAcrossOrders):
		return http.StatusBadRequest, "items belong to different orders"
	case errors.Is(err, service.ErrNoProductScreen):
		return http.StatusConflict, "items have no preparation screen"
	case errors.Is(err, service.ErrNoScreenAssigned):
		return http.StatusForbidden, "user has no preparation screen assigned"
	case errors.Is(err, service.ErrScreenMismatch):
		return http.StatusForbidden, "items belong to another preparation screen"
	case errors.Is(err, service.ErrScreenNotPreparing):
		return http.StatusConflict, "screen has not started preparation for this order"
	case errors.Is(err, service.ErrItemNotInProgress):
		return http.StatusConflict, "items are not in progress"
	case errors.Is(err, service.ErrItemNotReady):
		return http.StatusConflict, "items are not marked prepared"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func ticketToResponse(t service.Ticket) ticketResponse {
	resp := ticketResponse{
		ID:               t.ID,
		ShiftOrderNumber: t.ShiftOrderNumber,
		OrderType:        t.OrderType,
		OrderStatus:      t.OrderStatus,
		Notes:            t.Notes,
		CreatedAt:        t.CreatedAt,
		MyScreenStatus:   t.MyScreenStatus,
		HasPendingItems:  t.HasPendingItems,
		Items:            []ticketItemResponse{},
		ScreenStatuses:   []screenStatusResponse{},
	}
	if t.DineIn != nil {
		resp.DineIn = &dineInResponse{AreaName: t.DineIn.AreaName, TableName: t.DineIn.TableName}
	}
	if t.TakeAway != nil {
		resp.TakeAway = &takeAwayResponse{CustomerName: t.TakeAway.CustomerName, CustomerPhone: t.TakeAway.CustomerPhone}
	}
	if t.Delivery != nil {
		resp.Delivery = &deliveryResponse{Address: t.Delivery.Address, Phone: t.Delivery.Phone}
	}
	for _, ss := range t.ScreenStatuses {
		resp.ScreenStatuses = append(resp.ScreenStatuses, screenStatusResponse{
			ScreenID:   ss.ScreenID,
			ScreenName: ss.ScreenName,
			Status:     ss.Status,
		})
	}
	for _, it := range t.Items {
		resp.Items = append(resp.Items, ticketItemResponse{
			ItemIDs:           it.ItemIDs,
			ProductName:       it.ProductName,
			VariantName:       it.VariantName,
			ModifierNames:     it.ModifierNames,
			Customizations:    it.Customizations,
			PreparationNotes:  it.PreparationNotes,
			PreparationStatus: it.PreparationStatus,
			PreparedAt:        it.PreparedAt,
			PreparedByName:    it.PreparedByName,
			Quantity:          it.Quantity,
			BelongsToMyScreen: it.BelongsToMyScreen,
		})
	}
	return resp
}
