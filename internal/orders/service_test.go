package orders

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/pagination"
)

// stubRepo implements Repository over an in-memory map with the same
// conditional-write semantics as the SQL statements.
type stubRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
}

func newStubRepo(orders ...*models.Order) *stubRepo {
	repo := &stubRepo{orders: make(map[uuid.UUID]*models.Order)}
	for _, o := range orders {
		repo.orders[o.ID] = o
	}
	return repo
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *stubRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.CustomerID == customerID }), nil
}

func (r *stubRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.VendorID == vendorID }), nil
}

func (r *stubRepo) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error) {
	return r.filter(func(o *models.Order) bool { return o.DriverID != nil && *o.DriverID == driverID }), nil
}

func (r *stubRepo) ListWaitingForDriver(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	matches := r.filter(func(o *models.Order) bool {
		return o.Status == enums.OrderStatusWaitingForDriver && o.DriverID == nil
	})
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID.String() < matches[j].ID.String()
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	if cursor != nil {
		kept := matches[:0]
		for _, o := range matches {
			if o.CreatedAt.After(cursor.CreatedAt) ||
				(o.CreatedAt.Equal(cursor.CreatedAt) && o.ID.String() > cursor.ID.String()) {
				kept = append(kept, o)
			}
		}
		matches = kept
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *stubRepo) filter(keep func(*models.Order) bool) []models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	return out
}

func (r *stubRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

func (r *stubRepo) ClaimForDriver(ctx context.Context, id, driverID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.Status != enums.OrderStatusWaitingForDriver || order.DriverID != nil {
		return false, nil
	}
	order.DriverID = &driverID
	order.Status = enums.OrderStatusDriverComingToPickup
	return true, nil
}

func (r *stubRepo) SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order, ok := r.orders[id]; ok {
		order.PaymentIntentID = &paymentIntentID
	}
	return nil
}

func (r *stubRepo) MarkDelivered(ctx context.Context, id, driverID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.Status != enums.OrderStatusDriverDelivering || order.DriverID == nil || *order.DriverID != driverID {
		return false, nil
	}
	order.Status = enums.OrderStatusDelivered
	return true, nil
}

func (r *stubRepo) MarkCancelled(ctx context.Context, id uuid.UUID, from enums.OrderStatus, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = enums.OrderStatusCancelled
	order.CancelledReason = &reason
	return true, nil
}

func newTestOrderService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "orders-test"}))
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func expectCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	t.Parallel()

	vendorID := uuid.New()
	driverID := uuid.New()
	intentID := "pi_123"
	order := &models.Order{
		ID:              uuid.New(),
		CustomerID:      uuid.New(),
		VendorID:        vendorID,
		Status:          enums.OrderStatusPendingPayment,
		PaymentIntentID: &intentID,
	}
	repo := newStubRepo(order)
	svc := newTestOrderService(t, repo)
	ctx := context.Background()

	got, err := svc.MarkPreparing(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark preparing: %v", err)
	}
	if got.Status != enums.OrderStatusPreparing {
		t.Fatalf("expected preparing, got %s", got.Status)
	}

	if _, err := svc.MarkReady(ctx, order.ID, Actor{ID: vendorID, Role: enums.ActorRoleVendor}); err != nil {
		t.Fatalf("mark ready: %v", err)
	}

	claimed, err := svc.Claim(ctx, order.ID, driverID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != enums.OrderStatusDriverComingToPickup {
		t.Fatalf("expected pickup status, got %s", claimed.Status)
	}

	if _, err := svc.StartDelivering(ctx, order.ID, driverID); err != nil {
		t.Fatalf("start delivering: %v", err)
	}

	delivered, err := svc.Deliver(ctx, order.ID, driverID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if delivered.Status != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", delivered.Status)
	}

	// terminal state accepts nothing further
	_, err = svc.MarkPreparing(ctx, order.ID)
	expectCode(t, err, pkgerrors.CodeStateConflict)
}

func TestClaimIsMutuallyExclusive(t *testing.T) {
	t.Parallel()

	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		Status:     enums.OrderStatusWaitingForDriver,
	}
	repo := newStubRepo(order)
	svc := newTestOrderService(t, repo)
	ctx := context.Background()

	driverA := uuid.New()
	driverB := uuid.New()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, driverID := range []uuid.UUID{driverA, driverB} {
		wg.Add(1)
		go func(slot int, id uuid.UUID) {
			defer wg.Done()
			_, results[slot] = svc.Claim(ctx, order.ID, id)
		}(i, driverID)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		expectCode(t, err, pkgerrors.CodeConflict)
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	final, err := svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.DriverID == nil {
		t.Fatalf("expected driver set after claim")
	}
	if *final.DriverID != driverA && *final.DriverID != driverB {
		t.Fatalf("unexpected driver %s", final.DriverID)
	}
}

func TestClaimIsIdempotentForWinningDriver(t *testing.T) {
	t.Parallel()

	driverID := uuid.New()
	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		Status:     enums.OrderStatusWaitingForDriver,
	}
	repo := newStubRepo(order)
	svc := newTestOrderService(t, repo)
	ctx := context.Background()

	if _, err := svc.Claim(ctx, order.ID, driverID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	again, err := svc.Claim(ctx, order.ID, driverID)
	if err != nil {
		t.Fatalf("repeat claim by winner should not error: %v", err)
	}
	if *again.DriverID != driverID {
		t.Fatalf("driver changed on repeat claim")
	}
}

func TestOnlyClaimingDriverMayAdvance(t *testing.T) {
	t.Parallel()

	driverID := uuid.New()
	otherDriver := uuid.New()
	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		Status:     enums.OrderStatusDriverComingToPickup,
		DriverID:   &driverID,
	}
	repo := newStubRepo(order)
	svc := newTestOrderService(t, repo)

	_, err := svc.StartDelivering(context.Background(), order.ID, otherDriver)
	expectCode(t, err, pkgerrors.CodeForbidden)
}

func TestCancelRules(t *testing.T) {
	t.Parallel()

	customerID := uuid.New()
	vendorID := uuid.New()
	intentID := "pi_456"
	ctx := context.Background()

	t.Run("customer cancels while uncaptured and hold needs release", func(t *testing.T) {
		order := &models.Order{
			ID: uuid.New(), CustomerID: customerID, VendorID: vendorID,
			Status: enums.OrderStatusPendingPayment, PaymentIntentID: &intentID,
		}
		svc := newTestOrderService(t, newStubRepo(order))
		res, err := svc.Cancel(ctx, order.ID, Actor{ID: customerID, Role: enums.ActorRoleCustomer}, "changed my mind")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if !res.HoldNeedsRelease {
			t.Fatalf("expected hold release for uncaptured order")
		}
		if res.Order.Status != enums.OrderStatusCancelled {
			t.Fatalf("expected cancelled, got %s", res.Order.Status)
		}
	})

	t.Run("customer cannot cancel after capture", func(t *testing.T) {
		order := &models.Order{
			ID: uuid.New(), CustomerID: customerID, VendorID: vendorID,
			Status: enums.OrderStatusPreparing,
		}
		svc := newTestOrderService(t, newStubRepo(order))
		_, err := svc.Cancel(ctx, order.ID, Actor{ID: customerID, Role: enums.ActorRoleCustomer}, "")
		expectCode(t, err, pkgerrors.CodeForbidden)
	})

	t.Run("vendor cancels pre-pickup without hold release", func(t *testing.T) {
		order := &models.Order{
			ID: uuid.New(), CustomerID: customerID, VendorID: vendorID,
			Status: enums.OrderStatusWaitingForDriver, PaymentIntentID: &intentID,
		}
		svc := newTestOrderService(t, newStubRepo(order))
		res, err := svc.Cancel(ctx, order.ID, Actor{ID: vendorID, Role: enums.ActorRoleVendor}, "out of stock")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if res.HoldNeedsRelease {
			t.Fatalf("captured order must not release hold")
		}
	})

	t.Run("vendor cancels while driver heads to pickup", func(t *testing.T) {
		driverID := uuid.New()
		order := &models.Order{
			ID: uuid.New(), CustomerID: customerID, VendorID: vendorID,
			Status: enums.OrderStatusDriverComingToPickup, DriverID: &driverID, PaymentIntentID: &intentID,
		}
		svc := newTestOrderService(t, newStubRepo(order))
		res, err := svc.Cancel(ctx, order.ID, Actor{ID: vendorID, Role: enums.ActorRoleVendor}, "kitchen closed")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if res.Order.Status != enums.OrderStatusCancelled {
			t.Fatalf("expected cancelled, got %s", res.Order.Status)
		}
	})

	t.Run("nobody cancels after pickup", func(t *testing.T) {
		driverID := uuid.New()
		order := &models.Order{
			ID: uuid.New(), CustomerID: customerID, VendorID: vendorID,
			Status: enums.OrderStatusDriverDelivering, DriverID: &driverID,
		}
		svc := newTestOrderService(t, newStubRepo(order))
		_, err := svc.Cancel(ctx, order.ID, Actor{ID: vendorID, Role: enums.ActorRoleVendor}, "")
		expectCode(t, err, pkgerrors.CodeStateConflict)
	})

	t.Run("cancelled order is terminal", func(t *testing.T) {
		order := &models.Order{
			ID: uuid.New(), CustomerID: customerID, VendorID: vendorID,
			Status: enums.OrderStatusCancelled,
		}
		svc := newTestOrderService(t, newStubRepo(order))
		_, err := svc.Cancel(ctx, order.ID, Actor{ID: vendorID, Role: enums.ActorRoleVendor}, "")
		expectCode(t, err, pkgerrors.CodeStateConflict)
	})
}

func TestVendorOwnershipGuardOnMarkReady(t *testing.T) {
	t.Parallel()

	order := &models.Order{
		ID: uuid.New(), CustomerID: uuid.New(), VendorID: uuid.New(),
		Status: enums.OrderStatusPreparing,
	}
	svc := newTestOrderService(t, newStubRepo(order))

	_, err := svc.MarkReady(context.Background(), order.ID, Actor{ID: uuid.New(), Role: enums.ActorRoleVendor})
	expectCode(t, err, pkgerrors.CodeForbidden)
}

func TestClaimableFeedPaginates(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var seeded []*models.Order
	for i := 0; i < 5; i++ {
		seeded = append(seeded, &models.Order{
			ID:         uuid.New(),
			CustomerID: uuid.New(),
			VendorID:   uuid.New(),
			Status:     enums.OrderStatusWaitingForDriver,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	repo := newStubRepo(seeded...)
	svc := newTestOrderService(t, repo)
	ctx := context.Background()

	first, err := svc.ListClaimable(ctx, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Orders) != 2 {
		t.Fatalf("first page size = %d", len(first.Orders))
	}
	if first.NextCursor == "" {
		t.Fatal("expected a next cursor on the first page")
	}

	second, err := svc.ListClaimable(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Orders) != 2 {
		t.Fatalf("second page size = %d", len(second.Orders))
	}
	if second.Orders[0].ID == first.Orders[0].ID {
		t.Fatal("second page repeated the first page")
	}

	third, err := svc.ListClaimable(ctx, pagination.Params{Limit: 2, Cursor: second.NextCursor})
	if err != nil {
		t.Fatalf("third page: %v", err)
	}
	if len(third.Orders) != 1 {
		t.Fatalf("third page size = %d", len(third.Orders))
	}
	if third.NextCursor != "" {
		t.Fatalf("unexpected cursor on final page: %q", third.NextCursor)
	}

	if _, err := svc.ListClaimable(ctx, pagination.Params{Cursor: "not-base64"}); err == nil {
		t.Fatal("expected invalid cursor to be rejected")
	}
}
