package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/metrics"
)

// OrderSource is the slice of order persistence the coordinator needs. The
// orders repository satisfies it; keeping the interface here avoids a
// package cycle between orders and settlement.
type OrderSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) error
}

// AuthorizeParams opens or resumes the manual-capture hold for an order.
type AuthorizeParams struct {
	OrderID      uuid.UUID
	ReceiptEmail string
}

// AuthorizeResult carries what the client needs to confirm the hold.
type AuthorizeResult struct {
	PaymentIntentID string           `json:"paymentIntentId"`
	ClientSecret    string           `json:"clientSecret"`
	AmountCents     int              `json:"amountCents"`
	Currency        enums.Currency   `json:"currency"`
	Status          enums.HoldStatus `json:"status"`
	Resumed         bool             `json:"resumed"`
}

// TransferResult is one settled payout leg.
type TransferResult struct {
	Leg              enums.TransferLeg `json:"leg"`
	TransferID       string            `json:"transferId"`
	AmountCents      int               `json:"amountCents"`
	DestinationID    string            `json:"destinationId"`
	CapturedChargeID string            `json:"capturedChargeId"`
}

// DisconnectParams identifies the connected account a user wants detached.
type DisconnectParams struct {
	UserID     uuid.UUID
	EntityID   uuid.UUID
	EntityType string
	AccountID  string
}

// Service coordinates the hold, capture and transfer legs of an order's
// payment against the processor and the local settlement tables.
type Service interface {
	Authorize(ctx context.Context, params AuthorizeParams) (*AuthorizeResult, error)
	CaptureAndPayVendor(ctx context.Context, orderID uuid.UUID, vendorAccountID string) (*TransferResult, error)
	PayDriver(ctx context.Context, orderID uuid.UUID, driverAccountID string) (*TransferResult, error)
	CancelHold(ctx context.Context, orderID uuid.UUID) error
	HoldForOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error)
	HoldForIntent(ctx context.Context, paymentIntentID string) (*models.PaymentHold, error)
	Disconnect(ctx context.Context, params DisconnectParams) error
}

type coordinator struct {
	client  PaymentsClient
	repo    Repository
	orders  OrderSource
	logg    *logger.Logger
	metrics *metrics.SettlementMetrics
	cfg     config.SettlementConfig
}

// NewService wires the settlement coordinator.
func NewService(
	client PaymentsClient,
	repo Repository,
	orders OrderSource,
	logg *logger.Logger,
	m *metrics.SettlementMetrics,
	cfg config.SettlementConfig,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("payments client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &coordinator{
		client:  client,
		repo:    repo,
		orders:  orders,
		logg:    logg,
		metrics: m,
		cfg:     cfg,
	}, nil
}

// Authorize opens a manual-capture hold for the order's total, grouped under
// the order id so every later transfer reconciles to it. A repeat call for
// the same order resumes the existing hold instead of opening a second one.
func (c *coordinator) Authorize(ctx context.Context, params AuthorizeParams) (*AuthorizeResult, error) {
	if params.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	ctx = c.logg.WithOrderID(ctx, params.OrderID.String())

	order, err := c.orders.FindByID(ctx, params.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if order.Status != enums.OrderStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order is %s, holds can only be opened while payment is pending", order.Status))
	}

	existing, err := c.repo.FindHoldByOrder(ctx, params.OrderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status != enums.HoldStatusCanceled {
		intent, err := c.client.GetIntent(ctx, existing.PaymentIntentID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to load existing payment hold")
		}
		c.logg.Info(ctx, "resumed existing payment hold")
		return &AuthorizeResult{
			PaymentIntentID: existing.PaymentIntentID,
			ClientSecret:    intent.ClientSecret,
			AmountCents:     existing.AmountCents,
			Currency:        existing.Currency,
			Status:          existing.Status,
			Resumed:         true,
		}, nil
	}

	transferGroup := params.OrderID.String()
	intentParams := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(order.TotalCents)),
		Currency:      stripe.String(c.currency()),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		TransferGroup: stripe.String(transferGroup),
	}
	if params.ReceiptEmail != "" {
		intentParams.ReceiptEmail = stripe.String(params.ReceiptEmail)
	}
	intentParams.IdempotencyKey = stripe.String(fmt.Sprintf("hold-%s", params.OrderID))

	intent, err := c.client.CreateIntent(ctx, intentParams)
	if err != nil {
		c.metrics.IncHold("failure")
		c.logg.Error(ctx, "failed to open payment hold", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to open payment hold")
	}

	hold := &models.PaymentHold{
		OrderID:         params.OrderID,
		PaymentIntentID: intent.ID,
		AmountCents:     order.TotalCents,
		Currency:        enums.Currency(c.currency()),
		TransferGroup:   transferGroup,
		Status:          holdStatusFromIntent(intent.Status),
	}
	if _, err := c.repo.CreateHold(ctx, hold); err != nil {
		return nil, err
	}
	if err := c.orders.SetPaymentIntent(ctx, params.OrderID, intent.ID); err != nil {
		return nil, err
	}

	c.metrics.IncHold("success")
	c.logg.Info(ctx, "payment hold opened")
	return &AuthorizeResult{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountCents:     order.TotalCents,
		Currency:        hold.Currency,
		Status:          hold.Status,
	}, nil
}

// CaptureAndPayVendor captures the order's hold if it has not been captured
// yet, then transfers the vendor's share out of the captured charge. Both
// halves are idempotent, so the call is safe to repeat after any failure.
func (c *coordinator) CaptureAndPayVendor(ctx context.Context, orderID uuid.UUID, vendorAccountID string) (*TransferResult, error) {
	if vendorAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor account id is required")
	}
	ctx = c.logg.WithOrderID(ctx, orderID.String())

	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	hold, err := c.repo.FindHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment hold exists for order")
		}
		return nil, err
	}
	if hold.Status == enums.HoldStatusCanceled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment hold was cancelled")
	}

	chargeID, err := c.ensureCaptured(ctx, hold)
	if err != nil {
		return nil, err
	}

	amount := vendorShareCents(order, c.cfg.PlatformFeeBP)
	return c.transferLeg(ctx, order, hold, enums.TransferLegVendor, vendorAccountID, amount, chargeID)
}

// PayDriver transfers the driver's share out of the already captured charge.
// It requires a prior capture; delivery fees are never paid from an
// uncaptured hold.
func (c *coordinator) PayDriver(ctx context.Context, orderID uuid.UUID, driverAccountID string) (*TransferResult, error) {
	if driverAccountID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver account id is required")
	}
	ctx = c.logg.WithOrderID(ctx, orderID.String())

	order, err := c.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	hold, err := c.repo.FindHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment hold exists for order")
		}
		return nil, err
	}
	if hold.Status != enums.HoldStatusSucceeded || hold.CapturedChargeID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not been captured yet")
	}

	amount := driverShareCents(order)
	return c.transferLeg(ctx, order, hold, enums.TransferLegDriver, driverAccountID, amount, *hold.CapturedChargeID)
}

// CancelHold releases an uncaptured hold. Once the hold has been captured
// the money has moved and the request is rejected.
func (c *coordinator) CancelHold(ctx context.Context, orderID uuid.UUID) error {
	ctx = c.logg.WithOrderID(ctx, orderID.String())

	hold, err := c.repo.FindHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no payment hold exists for order")
		}
		return err
	}
	switch hold.Status {
	case enums.HoldStatusCanceled:
		return nil
	case enums.HoldStatusSucceeded:
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("Cannot cancel payment in status: %s", hold.Status))
	}

	if _, err := c.client.CancelIntent(ctx, hold.PaymentIntentID, nil); err != nil {
		c.logg.Error(ctx, "failed to cancel payment hold", err)
		// The processor may or may not have cancelled; flag the hold so a
		// later capture reconciles against the processor first.
		if updateErr := c.repo.UpdateHoldStatus(ctx, hold.ID, enums.HoldStatusCancelPending, nil); updateErr != nil {
			c.logg.Error(ctx, "failed to flag hold as cancel pending", updateErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to cancel payment hold")
	}
	if err := c.repo.UpdateHoldStatus(ctx, hold.ID, enums.HoldStatusCanceled, nil); err != nil {
		return err
	}
	c.logg.Info(ctx, "payment hold cancelled")
	return nil
}

// HoldForOrder returns the hold row for an order.
func (c *coordinator) HoldForOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentHold, error) {
	hold, err := c.repo.FindHoldByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment hold exists for order")
		}
		return nil, err
	}
	return hold, nil
}

// HoldForIntent resolves the hold row owning a processor payment intent.
func (c *coordinator) HoldForIntent(ctx context.Context, paymentIntentID string) (*models.PaymentHold, error) {
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id is required")
	}
	hold, err := c.repo.FindHoldByIntent(ctx, paymentIntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment hold exists for intent")
		}
		return nil, err
	}
	return hold, nil
}

// Disconnect revokes the transfer capability on a connected payout account.
// Users can only disconnect their own account.
func (c *coordinator) Disconnect(ctx context.Context, params DisconnectParams) error {
	if _, err := enums.ParsePayoutEntityType(params.EntityType); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown entity type %q", params.EntityType))
	}
	if params.UserID != params.EntityID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot disconnect another user's payout account")
	}
	if params.AccountID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	if err := c.client.RevokeTransferCapability(ctx, params.AccountID); err != nil {
		c.logg.Error(ctx, "failed to disconnect payout account", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to disconnect payout account")
	}
	c.logg.Info(c.logg.WithField(ctx, "entity_type", params.EntityType), "payout account disconnected")
	return nil
}

// ensureCaptured captures the hold exactly once and returns the charge all
// transfers must draw from. A hold that already succeeded short-circuits to
// its recorded charge.
func (c *coordinator) ensureCaptured(ctx context.Context, hold *models.PaymentHold) (string, error) {
	if hold.Status == enums.HoldStatusSucceeded {
		if hold.CapturedChargeID == nil {
			return "", pkgerrors.New(pkgerrors.CodeInternal, "captured hold has no charge recorded")
		}
		return *hold.CapturedChargeID, nil
	}

	// A cancellation was attempted but its outcome is unknown. Ask the
	// processor before touching the money.
	if hold.Status == enums.HoldStatusCancelPending {
		if err := c.reconcileCancelPending(ctx, hold); err != nil {
			return "", err
		}
		if hold.Status == enums.HoldStatusSucceeded && hold.CapturedChargeID != nil {
			return *hold.CapturedChargeID, nil
		}
	}

	captureParams := &stripe.PaymentIntentCaptureParams{}
	captureParams.IdempotencyKey = stripe.String(fmt.Sprintf("capture-%s", hold.PaymentIntentID))
	intent, err := c.client.CaptureIntent(ctx, hold.PaymentIntentID, captureParams)
	if err != nil {
		c.metrics.IncCapture("failure")
		c.logg.Error(ctx, "failed to capture payment hold", err)
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to capture payment hold")
	}
	if intent.LatestCharge == nil || intent.LatestCharge.ID == "" {
		c.metrics.IncCapture("failure")
		return "", pkgerrors.New(pkgerrors.CodeDependency, "capture returned no charge")
	}

	chargeID := intent.LatestCharge.ID
	if err := c.repo.UpdateHoldStatus(ctx, hold.ID, enums.HoldStatusSucceeded, &chargeID); err != nil {
		return "", err
	}
	hold.Status = enums.HoldStatusSucceeded
	hold.CapturedChargeID = &chargeID

	c.metrics.IncCapture("success")
	c.logg.Info(ctx, "payment hold captured")
	return chargeID, nil
}

// reconcileCancelPending resolves a hold whose processor-side cancellation
// failed with an unknown outcome. The processor's view of the intent wins:
// a cancelled intent closes the hold, a captured one records the charge, and
// anything else returns the hold to a capturable state.
func (c *coordinator) reconcileCancelPending(ctx context.Context, hold *models.PaymentHold) error {
	intent, err := c.client.GetIntent(ctx, hold.PaymentIntentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to check payment hold status")
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusCanceled:
		if err := c.repo.UpdateHoldStatus(ctx, hold.ID, enums.HoldStatusCanceled, nil); err != nil {
			return err
		}
		hold.Status = enums.HoldStatusCanceled
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment hold was cancelled and can no longer be captured")
	case stripe.PaymentIntentStatusSucceeded:
		if intent.LatestCharge == nil || intent.LatestCharge.ID == "" {
			return pkgerrors.New(pkgerrors.CodeDependency, "captured intent returned no charge")
		}
		chargeID := intent.LatestCharge.ID
		if err := c.repo.UpdateHoldStatus(ctx, hold.ID, enums.HoldStatusSucceeded, &chargeID); err != nil {
			return err
		}
		hold.Status = enums.HoldStatusSucceeded
		hold.CapturedChargeID = &chargeID
		return nil
	default:
		// The cancel never reached the processor; the hold is still live.
		if err := c.repo.UpdateHoldStatus(ctx, hold.ID, enums.HoldStatusRequiresCapture, nil); err != nil {
			return err
		}
		hold.Status = enums.HoldStatusRequiresCapture
		return nil
	}
}

// transferLeg pays one settlement leg out of the captured charge. The local
// unique (order, leg) record plus a deterministic processor idempotency key
// guarantee at most one transfer per leg no matter how often it is retried.
func (c *coordinator) transferLeg(
	ctx context.Context,
	order *models.Order,
	hold *models.PaymentHold,
	leg enums.TransferLeg,
	destinationID string,
	amountCents int,
	chargeID string,
) (*TransferResult, error) {
	existing, err := c.repo.FindTransferByOrderAndLeg(ctx, order.ID, leg)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		return &TransferResult{
			Leg:              leg,
			TransferID:       existing.StripeTransferID,
			AmountCents:      existing.AmountCents,
			DestinationID:    existing.DestinationAccountID,
			CapturedChargeID: existing.SourceChargeID,
		}, nil
	}

	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%s share resolves to %d cents, nothing to transfer", leg, amountCents))
	}

	transferParams := &stripe.TransferParams{
		Amount:            stripe.Int64(int64(amountCents)),
		Currency:          stripe.String(c.currency()),
		Destination:       stripe.String(destinationID),
		SourceTransaction: stripe.String(chargeID),
		TransferGroup:     stripe.String(hold.TransferGroup),
	}
	transferParams.IdempotencyKey = stripe.String(TransferIdempotencyKey(order.ID, destinationID))

	created, err := c.client.CreateTransfer(ctx, transferParams)
	if err != nil {
		c.metrics.IncTransfer(string(leg), "failure")
		c.metrics.IncPartialFailure(string(leg))
		c.recordFailure(ctx, order.ID, leg, destinationID, amountCents, chargeID, hold.TransferGroup, err)
		c.logg.Error(c.logg.WithField(ctx, "leg", string(leg)),
			"transfer failed after capture, queued for reconciliation", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePartialSettlement, err,
			fmt.Sprintf("payment captured but %s transfer failed, queued for retry", leg))
	}

	record := &models.TransferRecord{
		OrderID:              order.ID,
		Leg:                  leg,
		DestinationAccountID: destinationID,
		AmountCents:          amountCents,
		SourceChargeID:       chargeID,
		TransferGroup:        hold.TransferGroup,
		StripeTransferID:     created.ID,
	}
	if _, err := c.repo.CreateTransferRecord(ctx, record); err != nil {
		return nil, err
	}

	c.metrics.IncTransfer(string(leg), "success")
	c.logg.Info(c.logg.WithField(ctx, "leg", string(leg)), "settlement transfer completed")
	return &TransferResult{
		Leg:              leg,
		TransferID:       created.ID,
		AmountCents:      amountCents,
		DestinationID:    destinationID,
		CapturedChargeID: chargeID,
	}, nil
}

func (c *coordinator) recordFailure(
	ctx context.Context,
	orderID uuid.UUID,
	leg enums.TransferLeg,
	destinationID string,
	amountCents int,
	chargeID, transferGroup string,
	cause error,
) {
	message := cause.Error()
	failure := &models.SettlementFailure{
		OrderID:              orderID,
		Leg:                  leg,
		DestinationAccountID: destinationID,
		AmountCents:          amountCents,
		SourceChargeID:       chargeID,
		TransferGroup:        transferGroup,
		Status:               enums.SettlementFailureStatusPending,
		Attempts:             1,
		LastError:            &message,
		NextAttemptAt:        time.Now().Add(c.cfg.RetryBaseBackoff),
	}
	if _, err := c.repo.CreateFailure(ctx, failure); err != nil {
		// A duplicate row means the leg is already queued; anything else is
		// worth surfacing because retry depends on it.
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			c.logg.Error(ctx, "failed to queue settlement failure for retry", err)
		}
	}
}

func (c *coordinator) currency() string {
	if c.cfg.Currency != "" {
		return c.cfg.Currency
	}
	return string(enums.CurrencyUSD)
}

// TransferIdempotencyKey is the deterministic processor key for one payout
// leg, derived from the order and destination so retries always collapse
// onto the first attempt.
func TransferIdempotencyKey(orderID uuid.UUID, destinationID string) string {
	return fmt.Sprintf("transfer-%s-%s", orderID, destinationID)
}

// vendorShareCents is the vendor payout: items plus tax, minus the platform
// commission taken on the item subtotal. Service fee stays with the platform.
func vendorShareCents(order *models.Order, platformFeeBP int) int {
	commission := (order.SubtotalCents*platformFeeBP + 5000) / 10000
	return order.SubtotalCents + order.TaxCents - commission
}

// driverShareCents is the driver payout: the delivery fee plus the full tip.
func driverShareCents(order *models.Order) int {
	return order.DeliveryFeeCents + order.TipCents
}

func holdStatusFromIntent(status stripe.PaymentIntentStatus) enums.HoldStatus {
	switch status {
	case stripe.PaymentIntentStatusRequiresCapture:
		return enums.HoldStatusRequiresCapture
	case stripe.PaymentIntentStatusSucceeded:
		return enums.HoldStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return enums.HoldStatusCanceled
	default:
		return enums.HoldStatusRequiresConfirmation
	}
}
