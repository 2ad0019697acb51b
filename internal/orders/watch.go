package orders

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
)

// FieldChange records one field that differed between the previously observed
// snapshot of an order and the new one.
type FieldChange struct {
	Field string
	Old   any
	New   any
}

// SnapshotResult is what one pushed snapshot produced for one order.
type SnapshotResult struct {
	OrderID        uuid.UUID
	Changes        []FieldChange
	DeliveredEvent bool
}

type observedOrder struct {
	status   enums.OrderStatus
	driverID *uuid.UUID
	tipCents int
	notified bool
}

// Watcher reconciles pushed order snapshots for one observer session. It
// diffs each snapshot against the last observed state instead of blindly
// overwriting, and emits the delivered notification at most once per order
// for this session, keyed on the previously observed status.
type Watcher struct {
	mu   sync.Mutex
	seen map[uuid.UUID]observedOrder
}

// NewWatcher builds an empty watcher for a fresh observer session.
func NewWatcher() *Watcher {
	return &Watcher{seen: make(map[uuid.UUID]observedOrder)}
}

// Observe ingests one pushed snapshot and returns the diff. The first
// snapshot of an order yields no changes, it only seeds the baseline; an
// order first seen already delivered does not fire the delivered event.
func (w *Watcher) Observe(order *models.Order) SnapshotResult {
	if order == nil {
		return SnapshotResult{}
	}
	result := SnapshotResult{OrderID: order.ID}

	w.mu.Lock()
	defer w.mu.Unlock()

	prev, known := w.seen[order.ID]
	next := observedOrder{
		status:   order.Status,
		driverID: order.DriverID,
		tipCents: order.TipCents,
		notified: prev.notified,
	}

	if known {
		if prev.status != order.Status {
			result.Changes = append(result.Changes, FieldChange{Field: "status", Old: prev.status, New: order.Status})
		}
		if !uuidPtrEqual(prev.driverID, order.DriverID) {
			result.Changes = append(result.Changes, FieldChange{Field: "driver_id", Old: prev.driverID, New: order.DriverID})
		}
		if prev.tipCents != order.TipCents {
			result.Changes = append(result.Changes, FieldChange{Field: "tip_cents", Old: prev.tipCents, New: order.TipCents})
		}
		if order.Status == enums.OrderStatusDelivered && prev.status != enums.OrderStatusDelivered && !prev.notified {
			result.DeliveredEvent = true
			next.notified = true
		}
	}

	w.seen[order.ID] = next
	return result
}

// Forget drops the baseline for an order, e.g. when the observer stops
// tracking it.
func (w *Watcher) Forget(orderID uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.seen, orderID)
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
