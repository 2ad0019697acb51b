package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/internal/basket"
	"github.com/Shahir-47/sarva-backend/internal/delivery"
	"github.com/Shahir-47/sarva-backend/internal/orders"
	"github.com/Shahir-47/sarva-backend/internal/settlement"
	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/types"
)

// BeginParams starts checkout for one vendor basket.
type BeginParams struct {
	CustomerID uuid.UUID
	VendorID   uuid.UUID
	TipCents   int
	Customer   types.PartySnapshot
	Vendor     types.PartySnapshot
}

// BeginResult is everything the client needs to confirm payment.
type BeginResult struct {
	Session *models.CheckoutSession     `json:"session"`
	Order   *models.Order               `json:"order"`
	Quote   *delivery.Quote             `json:"quote"`
	Payment *settlement.AuthorizeResult `json:"payment"`
	Resumed bool                        `json:"resumed"`
}

// ConfirmResult reports the captured order.
type ConfirmResult struct {
	Order    *models.Order              `json:"order"`
	Transfer *settlement.TransferResult `json:"transfer"`
}

// Service flattens one vendor basket into a pending order behind a
// single-owner checkout session.
type Service interface {
	Begin(ctx context.Context, params BeginParams) (*BeginResult, error)
	Confirm(ctx context.Context, customerID uuid.UUID, vendorAccountID string) (*ConfirmResult, error)
	Abandon(ctx context.Context, customerID uuid.UUID) error
}

type service struct {
	repo       Repository
	baskets    basket.Service
	pricing    *delivery.Engine
	orders     orders.Service
	settlement settlement.Service
	logg       *logger.Logger
	cfg        config.CheckoutConfig
	now        func() time.Time
}

// NewService wires the checkout orchestrator.
func NewService(
	repo Repository,
	baskets basket.Service,
	pricing *delivery.Engine,
	orderSvc orders.Service,
	settlementSvc settlement.Service,
	logg *logger.Logger,
	cfg config.CheckoutConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if baskets == nil {
		return nil, fmt.Errorf("basket service required")
	}
	if pricing == nil {
		return nil, fmt.Errorf("delivery pricing engine required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if settlementSvc == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		baskets:    baskets,
		pricing:    pricing,
		orders:     orderSvc,
		settlement: settlementSvc,
		logg:       logg,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Begin claims the customer's checkout session and opens the payment hold.
// Re-submitting while a session for the same vendor is active resumes the
// existing hold, so a customer can never end up with two holds for one order.
func (s *service) Begin(ctx context.Context, params BeginParams) (*BeginResult, error) {
	if params.CustomerID == uuid.Nil || params.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id and vendor id are required")
	}
	if params.TipCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip must be non-negative")
	}
	ctx = s.logg.WithCustomerID(ctx, params.CustomerID.String())
	ctx = s.logg.WithVendorID(ctx, params.VendorID.String())

	if resumed, err := s.resumeActive(ctx, params); resumed != nil || err != nil {
		return resumed, err
	}

	document, err := s.baskets.Get(ctx, params.CustomerID)
	if err != nil {
		return nil, err
	}
	lines := document[params.VendorID]
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket has no items for this vendor")
	}

	quote, err := s.pricing.QuoteFor(ctx, params.Customer.Location, params.Vendor.Location)
	if err != nil {
		return nil, err
	}

	subtotal := 0
	items := make([]models.OrderLineItem, 0, len(lines))
	for _, line := range lines {
		total := line.UnitPriceCents * line.Quantity
		subtotal += total
		items = append(items, models.OrderLineItem{
			ItemID:         line.ItemID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Quantity,
			TotalCents:     total,
		})
	}
	amounts := types.ComputeOrderAmounts(subtotal, quote.FeeCents, params.TipCents, s.cfg.TaxRateBP, s.cfg.ServiceFeeRateBP)

	session, err := s.repo.Create(ctx, &models.CheckoutSession{
		CustomerID: params.CustomerID,
		VendorID:   params.VendorID,
		Status:     enums.CheckoutSessionStatusActive,
		ExpiresAt:  s.now().Add(s.cfg.SessionTTL),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a checkout is already in progress")
		}
		return nil, err
	}

	order, err := s.orders.Create(ctx, &models.Order{
		CustomerID:       params.CustomerID,
		VendorID:         params.VendorID,
		Status:           enums.OrderStatusPendingPayment,
		Currency:         enums.CurrencyUSD,
		SubtotalCents:    amounts.SubtotalCents,
		TaxCents:         amounts.TaxCents,
		ServiceFeeCents:  amounts.ServiceFeeCents,
		DeliveryFeeCents: amounts.DeliveryFeeCents,
		TipCents:         amounts.TipCents,
		TotalCents:       amounts.TotalCents,
		VendorSnapshot:   params.Vendor,
		CustomerSnapshot: params.Customer,
		LineItems:        items,
	})
	if err != nil {
		s.releaseSession(ctx, session.ID)
		return nil, err
	}

	payment, err := s.settlement.Authorize(ctx, settlement.AuthorizeParams{
		OrderID:      order.ID,
		ReceiptEmail: params.Customer.Email,
	})
	if err != nil {
		s.releaseSession(ctx, session.ID)
		return nil, err
	}
	if err := s.repo.AttachOrder(ctx, session.ID, order.ID, payment.PaymentIntentID); err != nil {
		return nil, err
	}
	session.OrderID = &order.ID
	session.PaymentIntentID = &payment.PaymentIntentID

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "checkout started")
	return &BeginResult{
		Session: session,
		Order:   order,
		Quote:   quote,
		Payment: payment,
	}, nil
}

// resumeActive returns the existing begin result when the customer already
// holds an active, unexpired session for the same vendor. An expired session
// is abandoned in place so a fresh one can be claimed.
func (s *service) resumeActive(ctx context.Context, params BeginParams) (*BeginResult, error) {
	session, err := s.repo.FindActiveByCustomer(ctx, params.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if session.ExpiresAt.Before(s.now()) {
		s.logg.Info(ctx, "abandoning expired checkout session")
		s.abandonSession(ctx, session)
		return nil, nil
	}
	if session.VendorID != params.VendorID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a checkout for another vendor is already in progress")
	}
	if session.OrderID == nil {
		// Session was claimed but the order never materialized; release it
		// and start over.
		s.releaseSession(ctx, session.ID)
		return nil, nil
	}

	order, err := s.orders.Get(ctx, *session.OrderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.settlement.Authorize(ctx, settlement.AuthorizeParams{
		OrderID:      order.ID,
		ReceiptEmail: params.Customer.Email,
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "resumed checkout session")
	return &BeginResult{
		Session: session,
		Order:   order,
		Payment: payment,
		Resumed: true,
	}, nil
}

// Confirm runs after the customer confirmed the hold with the processor:
// capture, pay the vendor leg, move the order to preparing and clear the
// vendor's basket key.
func (s *service) Confirm(ctx context.Context, customerID uuid.UUID, vendorAccountID string) (*ConfirmResult, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	ctx = s.logg.WithCustomerID(ctx, customerID.String())

	session, err := s.activeSession(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if session.OrderID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout session has no order to confirm")
	}
	ctx = s.logg.WithOrderID(ctx, session.OrderID.String())

	transfer, err := s.settlement.CaptureAndPayVendor(ctx, *session.OrderID, vendorAccountID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodePartialSettlement {
			return nil, err
		}
		// Capture succeeded, the vendor payout is queued for retry. The
		// order still progresses; the reconciliation worker owns the leg.
		s.logg.Warn(ctx, "vendor payout queued for reconciliation, continuing checkout")
	}

	order, err := s.orders.MarkPreparing(ctx, *session.OrderID)
	if err != nil {
		return nil, err
	}

	if _, err := s.baskets.RemoveVendor(ctx, customerID, session.VendorID); err != nil {
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
			s.logg.Error(ctx, "failed to clear vendor basket after checkout", err)
		}
	}
	if err := s.repo.MarkCompleted(ctx, session.ID); err != nil {
		return nil, err
	}

	s.logg.Info(ctx, "checkout confirmed")
	return &ConfirmResult{Order: order, Transfer: transfer}, nil
}

// Abandon releases the customer's active session and its uncaptured hold.
func (s *service) Abandon(ctx context.Context, customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	ctx = s.logg.WithCustomerID(ctx, customerID.String())

	session, err := s.activeSession(ctx, customerID)
	if err != nil {
		return err
	}
	s.abandonSession(ctx, session)
	s.logg.Info(ctx, "checkout abandoned")
	return nil
}

func (s *service) activeSession(ctx context.Context, customerID uuid.UUID) (*models.CheckoutSession, error) {
	session, err := s.repo.FindActiveByCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active checkout session")
		}
		return nil, err
	}
	return session, nil
}

// abandonSession marks the session abandoned and releases its hold when one
// was opened and not yet captured. Release failures are logged, not fatal:
// the order stays pending_payment and the hold expires processor-side.
func (s *service) abandonSession(ctx context.Context, session *models.CheckoutSession) {
	if session.OrderID != nil {
		if err := s.settlement.CancelHold(ctx, *session.OrderID); err != nil {
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
				s.logg.Error(s.logg.WithOrderID(ctx, session.OrderID.String()),
					"failed to release hold while abandoning checkout", err)
			}
		}
	}
	if err := s.repo.MarkAbandoned(ctx, session.ID); err != nil {
		s.logg.Error(ctx, "failed to mark checkout session abandoned", err)
	}
}

func (s *service) releaseSession(ctx context.Context, id uuid.UUID) {
	if err := s.repo.MarkAbandoned(ctx, id); err != nil {
		s.logg.Error(ctx, "failed to release checkout session", err)
	}
}
