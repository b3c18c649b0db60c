package service

import (
	"github.com/google/uuid"

	"github.com/viefmoon/bite-api/internal/database"
	"github.com/viefmoon/bite-api/internal/enum"
)

// ScreenStatusMap maps order ID -> preparation screen ID -> screen status.
type ScreenStatusMap map[uuid.UUID]map[uuid.UUID]string

// ScreenStatusesFromOrders flattens the loaded screen-status rows into a
// nested lookup.
func ScreenStatusesFromOrders(orders []database.KitchenOrder) ScreenStatusMap {
	statuses := make(ScreenStatusMap, len(orders))
	for _, o := range orders {
		m := make(map[uuid.UUID]string, len(o.ScreenStatuses))
		for _, ss := range o.ScreenStatuses {
			m[ss.PreparationScreenID] = ss.Status
		}
		statuses[o.Order.ID] = m
	}
	return statuses
}

// FilterOrdersByScreenStatus keeps the orders relevant to the viewer's screen.
// With showPrepared the result is "what I already finished": only orders whose
// status for screenID is exactly READY. Without it the result is "what's left
// to do": everything else, including orders with no record for the screen yet.
func FilterOrdersByScreenStatus(orders []database.KitchenOrder, statuses ScreenStatusMap, screenID uuid.UUID, showPrepared bool) []database.KitchenOrder {
	filtered := make([]database.KitchenOrder, 0, len(orders))
	for _, o := range orders {
		ready := statuses[o.Order.ID][screenID] == enum.ScreenStatusReady
		if ready == showPrepared {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// UniqueScreenIDs returns the distinct screens named by the order's items'
// products. Items whose product has no home screen are skipped.
func UniqueScreenIDs(o database.KitchenOrder) map[uuid.UUID]struct{} {
	screens := make(map[uuid.UUID]struct{})
	for _, it := range o.Items {
		if it.PreparationScreenID.Valid {
			screens[uuid.UUID(it.PreparationScreenID.Bytes)] = struct{}{}
		}
	}
	return screens
}

// AllScreensReady reports whether every screen in the set has a recorded
// status of READY. A screen with no record counts as not ready.
func AllScreensReady(screenIDs map[uuid.UUID]struct{}, statuses map[uuid.UUID]string) bool {
	for id := range screenIDs {
		if statuses[id] != enum.ScreenStatusReady {
			return false
		}
	}
	return true
}

// AnyScreenInPreparation reports whether at least one screen in the set is
// currently IN_PREPARATION.
func AnyScreenInPreparation(screenIDs map[uuid.UUID]struct{}, statuses map[uuid.UUID]string) bool {
	for id := range screenIDs {
		if statuses[id] == enum.ScreenStatusInPreparation {
			return true
		}
	}
	return false
}
