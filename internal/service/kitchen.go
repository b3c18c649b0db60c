package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
)

// Errors returned by the kitchen service.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrOrderNotFound = errors.New("order not found")
)

// KitchenStore defines the DB methods needed by the kitchen service.
// Satisfied by *database.Queries (and its WithTx variant).
type KitchenStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetUserScreen(ctx context.Context, userID uuid.UUID) (database.GetUserScreenRow, error)
	ListKitchenOrders(ctx context.Context, arg database.ListKitchenOrdersParams) ([]database.KitchenOrder, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetScreenStatus(ctx context.Context, arg database.GetScreenStatusParams) (database.OrderPreparationScreenStatus, error)
	ListScreenStatusesByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderPreparationScreenStatus, error)
	StartScreenPreparation(ctx context.Context, arg database.StartScreenPreparationParams) (database.OrderPreparationScreenStatus, error)
	CompleteScreenPreparation(ctx context.Context, arg database.CompleteScreenPreparationParams) (database.OrderPreparationScreenStatus, error)
	UpdateScreenStatus(ctx context.Context, arg database.UpdateScreenStatusParams) (database.OrderPreparationScreenStatus, error)
	SetScreenItemsPreparationStatus(ctx context.Context, arg database.SetScreenItemsPreparationStatusParams) (int64, error)
	ListOrderItemScreens(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// NewKitchenStore creates a KitchenStore from a DBTX (pool or tx).
type NewKitchenStore func(db database.DBTX) KitchenStore

// KitchenService coordinates the kitchen read path and the screen-level
// preparation transitions.
type KitchenService struct {
	store    KitchenStore
	pool     TxBeginner
	newStore NewKitchenStore
}

// NewKitchenService creates a new KitchenService. store is the pool-backed
// KitchenStore used for reads; newStore creates transaction-scoped stores for
// the transitions.
func NewKitchenService(store KitchenStore, pool TxBeginner, newStore NewKitchenStore) *KitchenService {
	return &KitchenService{store: store, pool: pool, newStore: newStore}
}

// ListKitchenOrdersRequest is the validated input for the kitchen order list.
type ListKitchenOrdersRequest struct {
	UserID          uuid.UUID
	OrderType       string    // optional, empty = all types
	ScreenID        uuid.UUID // optional override of the user's assigned screen
	ShowPrepared    bool
	ShowAllProducts bool
	UngroupProducts bool
}

// ListOrders returns the kitchen tickets for the viewer: query, screen-status
// derivation, prepared/not-prepared filtering, then mapping.
func (s *KitchenService) ListOrders(ctx context.Context, req ListKitchenOrdersRequest) ([]Ticket, error) {
	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	// Explicit filter override, else the user's assigned screen, else
	// uuid.Nil = all screens.
	viewerScreen := req.ScreenID
	if viewerScreen == uuid.Nil && user.PreparationScreenID.Valid {
		viewerScreen = uuid.UUID(user.PreparationScreenID.Bytes)
	}

	params := database.ListKitchenOrdersParams{}
	if req.OrderType != "" {
		params.OrderType = pgtype.Text{String: req.OrderType, Valid: true}
	}
	if viewerScreen != uuid.Nil && !req.ShowAllProducts {
		params.ScreenID = pgtype.UUID{Bytes: viewerScreen, Valid: true}
	}

	orders, err := s.store.ListKitchenOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list kitchen orders: %w", err)
	}

	statuses := ScreenStatusesFromOrders(orders)
	orders = FilterOrdersByScreenStatus(orders, statuses, viewerScreen, req.ShowPrepared)

	opts := TicketOptions{
		ViewerScreenID:  viewerScreen,
		ShowAllProducts: req.ShowAllProducts,
		Ungroup:         req.UngroupProducts,
	}
	tickets := make([]Ticket, len(orders))
	for i, o := range orders {
		tickets[i] = BuildTicket(o, opts)
	}
	return tickets, nil
}

// ScreenInfo identifies a preparation screen for API responses.
type ScreenInfo struct {
	ID   uuid.UUID
	Name string
}

// MyScreen returns the user's assigned preparation screen, or nil when the
// user has none.
func (s *KitchenService) MyScreen(ctx context.Context, userID uuid.UUID) (*ScreenInfo, error) {
	row, err := s.store.GetUserScreen(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user screen: %w", err)
	}
	if !row.PreparationScreenID.Valid {
		return nil, nil
	}
	return &ScreenInfo{
		ID:   uuid.UUID(row.PreparationScreenID.Bytes),
		Name: row.ScreenName.String,
	}, nil
}

// StartPreparation moves the acting user's screen to IN_PREPARATION on the
// order and cascades that screen's items to IN_PROGRESS.
func (s *KitchenService) StartPreparation(ctx context.Context, orderID, userID uuid.UUID) (*database.OrderPreparationScreenStatus, error) {
	screenID, err := s.requireScreen(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	var ss database.OrderPreparationScreenStatus
	err = s.inTx(ctx, func(store KitchenStore) error {
		ss, err = store.StartScreenPreparation(ctx, database.StartScreenPreparationParams{
			OrderID:             orderID,
			PreparationScreenID: screenID,
			StartedAt:           now,
			StartedBy:           pgtype.UUID{Bytes: userID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("start screen preparation: %w", err)
		}
		_, err = store.SetScreenItemsPreparationStatus(ctx, database.SetScreenItemsPreparationStatusParams{
			OrderID:             orderID,
			PreparationScreenID: screenID,
			Status:              enum.PreparationStatusInProgress,
		})
		if err != nil {
			return fmt.Errorf("cascade items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recomputeOrderStatus(ctx, orderID)
	return &ss, nil
}

// CompletePreparation moves the acting user's screen to READY on the order
// and cascades that screen's items to READY with the user as preparer.
func (s *KitchenService) CompletePreparation(ctx context.Context, orderID, userID uuid.UUID) (*database.OrderPreparationScreenStatus, error) {
	screenID, err := s.requireScreen(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	now := pgtype.Timestamptz{Time: time.Now(), Valid: true}
	var ss database.OrderPreparationScreenStatus
	err = s.inTx(ctx, func(store KitchenStore) error {
		ss, err = store.CompleteScreenPreparation(ctx, database.CompleteScreenPreparationParams{
			OrderID:             orderID,
			PreparationScreenID: screenID,
			CompletedAt:         now,
			CompletedBy:         pgtype.UUID{Bytes: userID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("complete screen preparation: %w", err)
		}
		_, err = store.SetScreenItemsPreparationStatus(ctx, database.SetScreenItemsPreparationStatusParams{
			OrderID:             orderID,
			PreparationScreenID: screenID,
			Status:              enum.PreparationStatusReady,
			PreparedAt:          now,
			PreparedBy:          pgtype.UUID{Bytes: userID, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("cascade items: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recomputeOrderStatus(ctx, orderID)
	return &ss, nil
}

// CancelPreparation steps the acting user's screen back one state:
// IN_PREPARATION reverts to PENDING, READY reverts to IN_PREPARATION with the
// cancelling user recorded as the new preparer, PENDING is a no-op.
func (s *KitchenService) CancelPreparation(ctx context.Context, orderID, userID uuid.UUID) (*database.OrderPreparationScreenStatus, error) {
	screenID, err := s.requireScreen(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	ss := database.OrderPreparationScreenStatus{
		OrderID:             orderID,
		PreparationScreenID: screenID,
		Status:              enum.ScreenStatusPending,
	}
	err = s.inTx(ctx, func(store KitchenStore) error {
		current, err := store.GetScreenStatus(ctx, database.GetScreenStatusParams{
			OrderID:             orderID,
			PreparationScreenID: screenID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Nothing tracked yet: the screen counts as PENDING, no-op.
				return nil
			}
			return fmt.Errorf("get screen status: %w", err)
		}
		ss = current

		switch current.Status {
		case enum.ScreenStatusInPreparation:
			ss, err = store.UpdateScreenStatus(ctx, database.UpdateScreenStatusParams{
				ID:     current.ID,
				Status: enum.ScreenStatusPending,
			})
			if err != nil {
				return fmt.Errorf("revert screen to pending: %w", err)
			}
			_, err = store.SetScreenItemsPreparationStatus(ctx, database.SetScreenItemsPreparationStatusParams{
				OrderID:             orderID,
				PreparationScreenID: screenID,
				Status:              enum.PreparationStatusPending,
			})
			if err != nil {
				return fmt.Errorf("cascade items: %w", err)
			}

		case enum.ScreenStatusReady:
			ss, err = store.UpdateScreenStatus(ctx, database.UpdateScreenStatusParams{
				ID:        current.ID,
				Status:    enum.ScreenStatusInPreparation,
				StartedAt: current.StartedAt,
				StartedBy: current.StartedBy,
			})
			if err != nil {
				return fmt.Errorf("revert screen to in preparation: %w", err)
			}
			// The cancelling user becomes the preparer of record for the
			// re-opened items.
			_, err = store.SetScreenItemsPreparationStatus(ctx, database.SetScreenItemsPreparationStatusParams{
				OrderID:             orderID,
				PreparationScreenID: screenID,
				Status:              enum.PreparationStatusInProgress,
				PreparedBy:          pgtype.UUID{Bytes: userID, Valid: true},
			})
			if err != nil {
				return fmt.Errorf("cascade items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recomputeOrderStatus(ctx, orderID)
	return &ss, nil
}

// requireScreen validates the order and resolves the acting user's assigned
// screen, which every screen-level transition requires.
func (s *KitchenService) requireScreen(ctx context.Context, orderID, userID uuid.UUID) (uuid.UUID, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("get user: %w", err)
	}
	if !user.PreparationScreenID.Valid {
		return uuid.Nil, ErrNoScreenAssigned
	}

	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrOrderNotFound
		}
		return uuid.Nil, fmt.Errorf("get order: %w", err)
	}

	return uuid.UUID(user.PreparationScreenID.Bytes), nil
}

func (s *KitchenService) inTx(ctx context.Context, fn func(store KitchenStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(s.newStore(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// recomputeOrderStatus derives the order's overall status from its screen
// tracks after a transition. Best effort: the screen transition already
// committed, so failures are logged, not returned.
func (s *KitchenService) recomputeOrderStatus(ctx context.Context, orderID uuid.UUID) {
	if err := s.deriveOrderStatus(ctx, orderID); err != nil {
		log.Printf("ERROR: recompute order status %s: %v", orderID, err)
	}
}

func (s *KitchenService) deriveOrderStatus(ctx context.Context, orderID uuid.UUID) error {
	screens, err := s.store.ListOrderItemScreens(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list order item screens: %w", err)
	}
	if len(screens) == 0 {
		return nil
	}

	rows, err := s.store.ListScreenStatusesByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list screen statuses: %w", err)
	}
	statuses := make(map[uuid.UUID]string, len(rows))
	for _, r := range rows {
		statuses[r.PreparationScreenID] = r.Status
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	screenSet := make(map[uuid.UUID]struct{}, len(screens))
	for _, id := range screens {
		screenSet[id] = struct{}{}
	}

	next := order.OrderStatus
	switch {
	case AllScreensReady(screenSet, statuses):
		next = enum.OrderStatusReady
	case AnyScreenInPreparation(screenSet, statuses):
		next = enum.OrderStatusInPreparation
	case order.OrderStatus == enum.OrderStatusReady || order.OrderStatus == enum.OrderStatusInPreparation:
		// A screen regressed out of READY/IN_PREPARATION.
		next = enum.OrderStatusInProgress
	}

	if next == order.OrderStatus {
		return nil
	}
	if _, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:          orderID,
		OrderStatus: next,
	}); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return nil
}
