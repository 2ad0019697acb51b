package orders

import (
	"testing"

	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
)

func TestWatcherDiffsFields(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher()
	orderID := uuid.New()
	driverID := uuid.New()

	first := watcher.Observe(&models.Order{ID: orderID, Status: enums.OrderStatusWaitingForDriver})
	if len(first.Changes) != 0 {
		t.Fatalf("first snapshot should only seed the baseline, got %+v", first.Changes)
	}

	second := watcher.Observe(&models.Order{
		ID:       orderID,
		Status:   enums.OrderStatusDriverComingToPickup,
		DriverID: &driverID,
	})
	if len(second.Changes) != 2 {
		t.Fatalf("expected status and driver changes, got %+v", second.Changes)
	}

	// identical snapshot produces no diff
	third := watcher.Observe(&models.Order{
		ID:       orderID,
		Status:   enums.OrderStatusDriverComingToPickup,
		DriverID: &driverID,
	})
	if len(third.Changes) != 0 {
		t.Fatalf("identical snapshot should not diff, got %+v", third.Changes)
	}
}

func TestWatcherDeliveredEventFiresOnce(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher()
	orderID := uuid.New()

	watcher.Observe(&models.Order{ID: orderID, Status: enums.OrderStatusDriverDelivering})

	delivered := watcher.Observe(&models.Order{ID: orderID, Status: enums.OrderStatusDelivered})
	if !delivered.DeliveredEvent {
		t.Fatalf("expected delivered event on transition")
	}

	// repeated snapshot refreshes must not re-fire
	for i := 0; i < 3; i++ {
		again := watcher.Observe(&models.Order{ID: orderID, Status: enums.OrderStatusDelivered})
		if again.DeliveredEvent {
			t.Fatalf("delivered event fired again on refresh %d", i)
		}
	}
}

func TestWatcherOrderFirstSeenDeliveredDoesNotNotify(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher()
	orderID := uuid.New()

	first := watcher.Observe(&models.Order{ID: orderID, Status: enums.OrderStatusDelivered})
	if first.DeliveredEvent {
		t.Fatalf("baseline snapshot must not notify")
	}
}

func TestWatcherTracksOrdersIndependently(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher()
	orderA := uuid.New()
	orderB := uuid.New()

	watcher.Observe(&models.Order{ID: orderA, Status: enums.OrderStatusDriverDelivering})
	watcher.Observe(&models.Order{ID: orderB, Status: enums.OrderStatusDriverDelivering})

	resA := watcher.Observe(&models.Order{ID: orderA, Status: enums.OrderStatusDelivered})
	if !resA.DeliveredEvent {
		t.Fatalf("order A should notify")
	}
	resB := watcher.Observe(&models.Order{ID: orderB, Status: enums.OrderStatusDelivered})
	if !resB.DeliveredEvent {
		t.Fatalf("order B should notify independently")
	}
}

func TestWatcherForgetResetsBaseline(t *testing.T) {
	t.Parallel()

	watcher := NewWatcher()
	orderID := uuid.New()

	watcher.Observe(&models.Order{ID: orderID, Status: enums.OrderStatusDriverDelivering})
	watcher.Forget(orderID)

	res := watcher.Observe(&models.Order{ID: orderID, Status: enums.OrderStatusDelivered})
	if res.DeliveredEvent {
		t.Fatalf("after forget the next snapshot is a baseline, not a transition")
	}
}
