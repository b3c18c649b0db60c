package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
)

func kitchenOrderWithStatuses(orderID uuid.UUID, statuses map[uuid.UUID]string) database.KitchenOrder {
	ko := database.KitchenOrder{Order: database.Order{ID: orderID}}
	for screenID, status := range statuses {
		ko.ScreenStatuses = append(ko.ScreenStatuses, database.KitchenScreenStatus{
			PreparationScreenID: screenID,
			Status:              status,
		})
	}
	return ko
}

func TestFilterOrdersByScreenStatus_PendingView(t *testing.T) {
	screenID := uuid.New()
	readyOrder := uuid.New()
	pendingOrder := uuid.New()
	untrackedOrder := uuid.New()

	orders := []database.KitchenOrder{
		kitchenOrderWithStatuses(readyOrder, map[uuid.UUID]string{screenID: enum.ScreenStatusReady}),
		kitchenOrderWithStatuses(pendingOrder, map[uuid.UUID]string{screenID: enum.ScreenStatusInPreparation}),
		kitchenOrderWithStatuses(untrackedOrder, nil),
	}
	statuses := ScreenStatusesFromOrders(orders)

	got := FilterOrdersByScreenStatus(orders, statuses, screenID, false)
	if len(got) != 2 {
		t.Fatalf("expected 2 unprepared orders, got %d", len(got))
	}
	for _, o := range got {
		if o.Order.ID == readyOrder {
			t.Fatal("ready order should not appear in the pending view")
		}
	}
}

func TestFilterOrdersByScreenStatus_PreparedView(t *testing.T) {
	screenID := uuid.New()
	readyOrder := uuid.New()
	pendingOrder := uuid.New()

	orders := []database.KitchenOrder{
		kitchenOrderWithStatuses(readyOrder, map[uuid.UUID]string{screenID: enum.ScreenStatusReady}),
		kitchenOrderWithStatuses(pendingOrder, nil),
	}
	statuses := ScreenStatusesFromOrders(orders)

	got := FilterOrdersByScreenStatus(orders, statuses, screenID, true)
	if len(got) != 1 || got[0].Order.ID != readyOrder {
		t.Fatalf("expected only the ready order, got %d orders", len(got))
	}
}

func TestFilterOrdersByScreenStatus_OtherScreenReadyStillPending(t *testing.T) {
	myScreen := uuid.New()
	otherScreen := uuid.New()
	orderID := uuid.New()

	orders := []database.KitchenOrder{
		kitchenOrderWithStatuses(orderID, map[uuid.UUID]string{otherScreen: enum.ScreenStatusReady}),
	}
	statuses := ScreenStatusesFromOrders(orders)

	if got := FilterOrdersByScreenStatus(orders, statuses, myScreen, false); len(got) != 1 {
		t.Fatal("another screen's READY must not hide the order from my pending view")
	}
	if got := FilterOrdersByScreenStatus(orders, statuses, myScreen, true); len(got) != 0 {
		t.Fatal("another screen's READY must not surface the order in my prepared view")
	}
}

func TestUniqueScreenIDs_SkipsItemsWithoutScreen(t *testing.T) {
	screenA := uuid.New()
	screenB := uuid.New()
	ko := database.KitchenOrder{
		Items: []database.KitchenOrderItem{
			{PreparationScreenID: pgtype.UUID{Bytes: screenA, Valid: true}},
			{PreparationScreenID: pgtype.UUID{Bytes: screenA, Valid: true}},
			{PreparationScreenID: pgtype.UUID{Bytes: screenB, Valid: true}},
			{PreparationScreenID: pgtype.UUID{}},
		},
	}

	screens := UniqueScreenIDs(ko)
	if len(screens) != 2 {
		t.Fatalf("expected 2 screens, got %d", len(screens))
	}
	if _, ok := screens[screenA]; !ok {
		t.Fatal("missing screen A")
	}
	if _, ok := screens[screenB]; !ok {
		t.Fatal("missing screen B")
	}
}

func TestAllScreensReady(t *testing.T) {
	screenA := uuid.New()
	screenB := uuid.New()
	screens := map[uuid.UUID]struct{}{screenA: {}, screenB: {}}

	statuses := map[uuid.UUID]string{
		screenA: enum.ScreenStatusReady,
		screenB: enum.ScreenStatusReady,
	}
	if !AllScreensReady(screens, statuses) {
		t.Fatal("expected all screens ready")
	}

	statuses[screenB] = enum.ScreenStatusInPreparation
	if AllScreensReady(screens, statuses) {
		t.Fatal("one screen still preparing, must not be all ready")
	}

	// A screen with no record at all counts as not ready.
	delete(statuses, screenB)
	if AllScreensReady(screens, statuses) {
		t.Fatal("untracked screen must count as not ready")
	}
}

func TestAnyScreenInPreparation(t *testing.T) {
	screenA := uuid.New()
	screenB := uuid.New()
	screens := map[uuid.UUID]struct{}{screenA: {}, screenB: {}}

	statuses := map[uuid.UUID]string{screenA: enum.ScreenStatusReady}
	if AnyScreenInPreparation(screens, statuses) {
		t.Fatal("no screen is preparing")
	}

	statuses[screenB] = enum.ScreenStatusInPreparation
	if !AnyScreenInPreparation(screens, statuses) {
		t.Fatal("expected screen B to count as preparing")
	}
}
