package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
)

// Errors returned by the item preparation service.
var (
	ErrInvalidItemKey     = errors.New("invalid item key")
	ErrItemsNotFound      = errors.New("order items not found")
	ErrItemsAcrossOrders  = errors.New("items belong to different orders")
	ErrNoProductScreen    = errors.New("product has no preparation screen")
	ErrNoScreenAssigned   = errors.New("user has no assigned preparation screen")
	ErrScreenMismatch     = errors.New("items belong to another preparation screen")
	ErrScreenNotPreparing = errors.New("screen is not in preparation")
	ErrItemNotInProgress  = errors.New("item is not in progress")
	ErrItemNotReady       = errors.New("item is not marked ready")
)

// ItemStore defines the DB methods needed to toggle item preparation.
// Satisfied by *database.Queries (and its WithTx variant).
type ItemStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetOrderItemsWithScreen(ctx context.Context, ids []uuid.UUID) ([]database.OrderItemWithScreen, error)
	GetScreenStatus(ctx context.Context, arg database.GetScreenStatusParams) (database.OrderPreparationScreenStatus, error)
	SetItemsPreparationStatus(ctx context.Context, arg database.SetItemsPreparationStatusParams) (int64, error)
}

// NewItemStore creates an ItemStore from a DBTX (pool or tx).
type NewItemStore func(db database.DBTX) ItemStore

// ItemPreparationService toggles the preparation status of order items from
// the kitchen screens.
type ItemPreparationService struct {
	pool     TxBeginner
	newStore NewItemStore
}

// NewItemPreparationService creates a new ItemPreparationService.
func NewItemPreparationService(pool TxBeginner, newStore NewItemStore) *ItemPreparationService {
	return &ItemPreparationService{pool: pool, newStore: newStore}
}

// ParseItemKey splits a composite item key ("id" or "id1,id2,...") into item
// IDs. Grouped ticket lines carry the IDs of every item in the group.
func ParseItemKey(key string) ([]uuid.UUID, error) {
	parts := strings.Split(key, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidItemKey, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MarkItemPrepared sets every item named by the composite key to READY
// (prepared=true) or back to IN_PROGRESS (prepared=false). All items succeed
// or none do: preconditions are checked before the single batched update, and
// everything runs in one transaction.
func (s *ItemPreparationService) MarkItemPrepared(ctx context.Context, itemKey string, userID uuid.UUID, prepared bool) error {
	ids, err := ParseItemKey(itemKey)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	items, err := store.GetOrderItemsWithScreen(ctx, ids)
	if err != nil {
		return fmt.Errorf("get order items: %w", err)
	}
	if len(items) != len(ids) {
		return ErrItemsNotFound
	}

	orderID := items[0].OrderID
	for _, it := range items[1:] {
		if it.OrderID != orderID {
			return ErrItemsAcrossOrders
		}
	}

	screenID := uuid.Nil
	for _, it := range items {
		if !it.PreparationScreenID.Valid {
			return ErrNoProductScreen
		}
		itemScreen := uuid.UUID(it.PreparationScreenID.Bytes)
		if screenID == uuid.Nil {
			screenID = itemScreen
		} else if itemScreen != screenID {
			return ErrScreenMismatch
		}
	}

	user, err := store.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !user.PreparationScreenID.Valid {
		return ErrNoScreenAssigned
	}
	if uuid.UUID(user.PreparationScreenID.Bytes) != screenID {
		return ErrScreenMismatch
	}

	// Items may only be toggled while the screen is actively preparing.
	ss, err := store.GetScreenStatus(ctx, database.GetScreenStatusParams{
		OrderID:             orderID,
		PreparationScreenID: screenID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrScreenNotPreparing
		}
		return fmt.Errorf("get screen status: %w", err)
	}
	if ss.Status != enum.ScreenStatusInPreparation {
		return ErrScreenNotPreparing
	}

	for _, it := range items {
		if prepared && it.PreparationStatus != enum.PreparationStatusInProgress {
			return ErrItemNotInProgress
		}
		if !prepared && it.PreparationStatus != enum.PreparationStatusReady {
			return ErrItemNotReady
		}
	}

	arg := database.SetItemsPreparationStatusParams{
		IDs:    ids,
		Status: enum.PreparationStatusInProgress,
	}
	if prepared {
		arg.Status = enum.PreparationStatusReady
		arg.PreparedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
		arg.PreparedBy = pgtype.UUID{Bytes: userID, Valid: true}
	}
	if _, err := store.SetItemsPreparationStatus(ctx, arg); err != nil {
		return fmt.Errorf("set items preparation status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
