package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
	"github.com/viefmoon/bite-api/internal/middleware"
	"github.com/viefmoon/bite-api/internal/service"
	"github.com/viefmoon/bite-api/internal/ws"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// OrderStore defines the database methods needed by order read/update
// handlers. Satisfied by *database.Queries.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	DeleteScreenStatusesByOrder(ctx context.Context, orderID uuid.UUID) error
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
	hub   *ws.Hub
}

// NewOrderHandler creates a new OrderHandler. hub may be nil in tests.
func NewOrderHandler(svc OrderServicer, store OrderStore, hub *ws.Hub) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType  string                   `json:"order_type"`
	Notes      string                   `json:"notes"`
	TableID    string                   `json:"table_id"`
	CustomerID string                   `json:"customer_id"`
	Delivery   *deliveryRequest         `json:"delivery"`
	Items      []createOrderItemRequest `json:"items"`
}

type deliveryRequest struct {
	FullAddress    string `json:"full_address"`
	RecipientName  string `json:"recipient_name"`
	RecipientPhone string `json:"recipient_phone"`
}

type createOrderItemRequest struct {
	ProductID        string                 `json:"product_id"`
	VariantID        string                 `json:"variant_id"`
	Quantity         int                    `json:"quantity"`
	PreparationNotes string                 `json:"preparation_notes"`
	ModifierIDs      []string               `json:"modifier_ids"`
	Customizations   []customizationRequest `json:"customizations"`
}

type customizationRequest struct {
	PizzaCustomizationID string `json:"pizza_customization_id"`
	Half                 string `json:"half"`
	Action               string `json:"action"`
}

type orderResponse struct {
	ID               uuid.UUID           `json:"id"`
	ShiftOrderNumber int32               `json:"shift_order_number"`
	OrderType        string              `json:"order_type"`
	OrderStatus      string              `json:"order_status"`
	Notes            *string             `json:"notes"`
	TableID          *uuid.UUID          `json:"table_id"`
	CustomerID       *uuid.UUID          `json:"customer_id"`
	Subtotal         string              `json:"subtotal"`
	Total            string              `json:"total"`
	CreatedBy        uuid.UUID           `json:"created_by"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Items            []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID                uuid.UUID  `json:"id"`
	ProductID         uuid.UUID  `json:"product_id"`
	VariantID         *uuid.UUID `json:"variant_id"`
	BasePrice         string     `json:"base_price"`
	FinalPrice        string     `json:"final_price"`
	PreparationNotes  *string    `json:"preparation_notes"`
	PreparationStatus string     `json:"preparation_status"`
	PreparedAt        *time.Time `json:"prepared_at"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// allowedStatusTransitions covers the cashier workflow. The kitchen statuses
// (IN_PREPARATION, READY) are derived from screen tracks and cannot be set
// through this endpoint.
var allowedStatusTransitions = map[string][]string{
	enum.OrderStatusPending:       {enum.OrderStatusCancelled},
	enum.OrderStatusInProgress:    {enum.OrderStatusCancelled},
	enum.OrderStatusInPreparation: {enum.OrderStatusCancelled},
	enum.OrderStatusReady:         {enum.OrderStatusDelivered, enum.OrderStatusCompleted, enum.OrderStatusCancelled},
	enum.OrderStatusDelivered:     {enum.OrderStatusCompleted},
}

func validateStatusTransition(from, to string) error {
	for _, allowed := range allowedStatusTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("cannot transition order from %s to %s", from, to)
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq, err := toServiceOrderRequest(req, claims.UserID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, it := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(it)
	}

	if h.hub != nil {
		if payload, err := json.Marshal(resp); err == nil {
			h.hub.BroadcastAll(ws.Event{Type: "order.created", Payload: payload})
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = pgtype.Text{String: s, Valid: true}
	}
	if s := r.URL.Query().Get("type"); s != "" {
		params.OrderType = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, it := range items {
		resp.Items[i] = dbOrderItemToResponse(it)
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /orders/{id}/status for the cashier workflow.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	switch req.Status {
	case enum.OrderStatusDelivered, enum.OrderStatusCompleted, enum.OrderStatusCancelled:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	current, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for status update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validateStatusTransition(current.OrderStatus, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:          orderID,
		OrderStatus: req.Status,
	})
	if err != nil {
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// A cancelled order leaves the kitchen: its screen tracks are gone too.
	if req.Status == enum.OrderStatusCancelled {
		if err := h.store.DeleteScreenStatusesByOrder(r.Context(), orderID); err != nil {
			log.Printf("ERROR: delete screen statuses for cancelled order %s: %v", orderID, err)
		}
	}

	if h.hub != nil {
		if payload, err := json.Marshal(dbOrderToResponse(updated)); err == nil {
			h.hub.BroadcastAll(ws.Event{Type: "order.status_changed", Payload: payload})
		}
	}

	writeJSON(w, http.StatusOK, dbOrderToResponse(updated))
}

// --- Helpers ---

func toServiceOrderRequest(req createOrderRequest, createdBy uuid.UUID) (service.CreateOrderRequest, error) {
	svcReq := service.CreateOrderRequest{
		OrderType: req.OrderType,
		Notes:     req.Notes,
		CreatedBy: createdBy,
	}

	if req.TableID != "" {
		id, err := uuid.Parse(req.TableID)
		if err != nil {
			return svcReq, fmt.Errorf("invalid table_id")
		}
		svcReq.TableID = &id
	}
	if req.CustomerID != "" {
		id, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return svcReq, fmt.Errorf("invalid customer_id")
		}
		svcReq.CustomerID = &id
	}
	if req.Delivery != nil {
		svcReq.Delivery = &service.DeliveryRequest{
			FullAddress:    req.Delivery.FullAddress,
			RecipientName:  req.Delivery.RecipientName,
			RecipientPhone: req.Delivery.RecipientPhone,
		}
	}

	svcReq.Items = make([]service.CreateOrderItemRequest, len(req.Items))
	for i, it := range req.Items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			return svcReq, fmt.Errorf("item %d: invalid product_id", i)
		}
		item := service.CreateOrderItemRequest{
			ProductID:        productID,
			Quantity:         it.Quantity,
			PreparationNotes: it.PreparationNotes,
		}
		if it.VariantID != "" {
			variantID, err := uuid.Parse(it.VariantID)
			if err != nil {
				return svcReq, fmt.Errorf("item %d: invalid variant_id", i)
			}
			item.VariantID = &variantID
		}
		for _, modStr := range it.ModifierIDs {
			modID, err := uuid.Parse(modStr)
			if err != nil {
				return svcReq, fmt.Errorf("item %d: invalid modifier id", i)
			}
			item.ModifierIDs = append(item.ModifierIDs, modID)
		}
		for _, c := range it.Customizations {
			custID, err := uuid.Parse(c.PizzaCustomizationID)
			if err != nil {
				return svcReq, fmt.Errorf("item %d: invalid pizza_customization_id", i)
			}
			switch c.Half {
			case enum.PizzaHalfFull, enum.PizzaHalfOne, enum.PizzaHalfTwo:
			default:
				return svcReq, fmt.Errorf("item %d: invalid customization half", i)
			}
			switch c.Action {
			case enum.CustomizationActionAdd, enum.CustomizationActionRemove:
			default:
				return svcReq, fmt.Errorf("item %d: invalid customization action", i)
			}
			item.Customizations = append(item.Customizations, service.CustomizationRequest{
				PizzaCustomizationID: custID,
				Half:                 c.Half,
				Action:               c.Action,
			})
		}
		svcReq.Items[i] = item
	}

	return svcReq, nil
}

func isOrderValidationError(err error) bool {
	for _, target := range []error{
		service.ErrProductNotFound,
		service.ErrVariantNotFound,
		service.ErrVariantMismatch,
		service.ErrModifierNotFound,
		service.ErrModifierMismatch,
		service.ErrCustomizationNotFound,
		service.ErrNotPizza,
		service.ErrTableRequired,
		service.ErrDeliveryInfoRequired,
		service.ErrEmptyOrder,
		service.ErrInvalidOrderType,
		service.ErrInvalidQuantity,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		ShiftOrderNumber: o.ShiftOrderNumber,
		OrderType:        o.OrderType,
		OrderStatus:      o.OrderStatus,
		Subtotal:         numericToString(o.Subtotal),
		Total:            numericToString(o.Total),
		CreatedBy:        o.CreatedBy,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.TableID.Valid {
		id := uuid.UUID(o.TableID.Bytes)
		resp.TableID = &id
	}
	if o.CustomerID.Valid {
		id := uuid.UUID(o.CustomerID.Bytes)
		resp.CustomerID = &id
	}
	return resp
}

func dbOrderItemToResponse(it database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:                it.ID,
		ProductID:         it.ProductID,
		BasePrice:         numericToString(it.BasePrice),
		FinalPrice:        numericToString(it.FinalPrice),
		PreparationStatus: it.PreparationStatus,
	}
	if it.VariantID.Valid {
		id := uuid.UUID(it.VariantID.Bytes)
		resp.VariantID = &id
	}
	if it.PreparationNotes.Valid {
		resp.PreparationNotes = &it.PreparationNotes.String
	}
	if it.PreparedAt.Valid {
		resp.PreparedAt = &it.PreparedAt.Time
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid || n.Int == nil {
		return "0"
	}
	return decimal.NewFromBigInt(n.Int, n.Exp).String()
}
