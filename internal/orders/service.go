package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/pagination"
)

// Actor identifies who is requesting a lifecycle change.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// CancelResult reports whether the caller still needs to release the payment
// hold after a successful cancellation.
type CancelResult struct {
	Order           *models.Order
	HoldNeedsRelease bool
}

// Service drives the order lifecycle state machine.
type Service interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error)
	ListForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error)
	ListClaimable(ctx context.Context, params pagination.Params) (*ClaimablePage, error)
	MarkPreparing(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkReady(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	Claim(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error)
	StartDelivering(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error)
	Deliver(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*CancelResult, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds the order lifecycle service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if order.CustomerID == uuid.Nil || order.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and vendor ids are required")
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPendingPayment
	}
	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.find(ctx, id)
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	orders, err := s.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) ListForVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Order, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	orders, err := s.repo.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

func (s *service) ListForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id is required")
	}
	orders, err := s.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return orders, nil
}

// ClaimablePage is one page of the driver claim feed.
type ClaimablePage struct {
	Orders     []models.Order
	NextCursor string
}

func (s *service) ListClaimable(ctx context.Context, params pagination.Params) (*ClaimablePage, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	orders, err := s.repo.ListWaitingForDriver(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list claimable orders")
	}

	page := &ClaimablePage{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

// MarkPreparing advances the order after a successful capture.
func (s *service) MarkPreparing(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.advance(ctx, orderID, enums.OrderStatusPendingPayment, enums.OrderStatusPreparing, Actor{Role: enums.ActorRoleSystem})
}

// MarkReady moves a prepared order into the driver pool.
func (s *service) MarkReady(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role == enums.ActorRoleVendor && order.VendorID != actor.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
	}
	return s.advance(ctx, orderID, enums.OrderStatusPreparing, enums.OrderStatusWaitingForDriver, actor)
}

// Claim is the driver's atomic claim: exactly one of two concurrent calls
// succeeds, the loser gets a conflict and the order is untouched.
func (s *service) Claim(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil || driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and driver id are required")
	}

	ok, err := s.repo.ClaimForDriver(ctx, orderID, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
	}
	if !ok {
		order, findErr := s.find(ctx, orderID)
		if findErr != nil {
			return nil, findErr
		}
		if order.DriverID != nil && *order.DriverID == driverID {
			// claim already ours, treat as idempotent
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already claimed")
	}

	s.logg.Info(s.logg.WithOrderID(s.logg.WithDriverID(ctx, driverID.String()), orderID.String()), "driver claimed order")
	return s.find(ctx, orderID)
}

// StartDelivering marks pickup complete. Only the claiming driver may call it.
func (s *service) StartDelivering(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error) {
	if _, err := s.requireDriver(ctx, orderID, driverID); err != nil {
		return nil, err
	}
	return s.advance(ctx, orderID, enums.OrderStatusDriverComingToPickup, enums.OrderStatusDriverDelivering, Actor{ID: driverID, Role: enums.ActorRoleDriver})
}

// Deliver completes the order and stamps deliveredAt.
func (s *service) Deliver(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error) {
	order, err := s.requireDriver(ctx, orderID, driverID)
	if err != nil {
		return nil, err
	}
	if err := validateTransition(order.Status, enums.OrderStatusDelivered, enums.ActorRoleDriver); err != nil {
		return nil, err
	}

	ok, err := s.repo.MarkDelivered(ctx, orderID, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed, delivery not recorded")
	}
	return s.find(ctx, orderID)
}

// Cancel ends a non-terminal order. When the hold was never captured the
// caller must release it; the result says so.
func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor, reason string) (*CancelResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch actor.Role {
	case enums.ActorRoleCustomer:
		if order.CustomerID != actor.ID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
	case enums.ActorRoleVendor:
		if order.VendorID != actor.ID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to vendor")
		}
	}

	if err := validateCancel(order.Status, actor.Role); err != nil {
		return nil, err
	}

	wasUncaptured := order.Status == enums.OrderStatusPendingPayment
	ok, err := s.repo.MarkCancelled(ctx, orderID, order.Status, reason)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed, cancellation not recorded")
	}

	cancelled, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &CancelResult{
		Order:            cancelled,
		HoldNeedsRelease: wasUncaptured && order.PaymentIntentID != nil,
	}, nil
}

func (s *service) advance(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, actor Actor) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, to))
	}
	if err := validateTransition(from, to, actor.Role); err != nil {
		return nil, err
	}

	ok, err := s.repo.UpdateStatus(ctx, orderID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order state changed concurrently")
	}
	return s.find(ctx, orderID)
}

func (s *service) requireDriver(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil || driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and driver id are required")
	}
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.DriverID == nil || *order.DriverID != driverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to driver")
	}
	return order, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
