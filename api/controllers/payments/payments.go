package payments

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/api/middleware"
	"github.com/Shahir-47/sarva-backend/api/responses"
	"github.com/Shahir-47/sarva-backend/api/validators"
	"github.com/Shahir-47/sarva-backend/internal/orders"
	"github.com/Shahir-47/sarva-backend/internal/settlement"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
)

type createHoldRequest struct {
	OrderID       string `json:"order_id" validate:"required,uuid"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
}

type createHoldResponse struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int    `json:"amount_cents"`
}

type captureRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	VendorAccountID string `json:"vendor_account_id" validate:"required"`
}

type driverTransferRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
	DriverAccountID string `json:"driver_account_id" validate:"required"`
}

type cancelHoldRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

type disconnectRequest struct {
	EntityID   string `json:"entity_id" validate:"required,uuid"`
	EntityType string `json:"entity_type" validate:"required"`
	UserID     string `json:"user_id" validate:"required,uuid"`
	AccountID  string `json:"account_id" validate:"required"`
}

type transferResponse struct {
	Success    bool   `json:"success"`
	TransferID string `json:"transfer_id"`
}

// CreateHold opens (or resumes) the manual-capture hold for an order.
func CreateHold(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createHoldRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, _ := uuid.Parse(req.OrderID)

		result, err := svc.Authorize(r.Context(), settlement.AuthorizeParams{
			OrderID:      orderID,
			ReceiptEmail: req.CustomerEmail,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createHoldResponse{
			ClientSecret:    result.ClientSecret,
			PaymentIntentID: result.PaymentIntentID,
			AmountCents:     result.AmountCents,
		})
	}
}

// CaptureAndTransferVendor captures the hold and pays the vendor leg, then
// moves the order to preparing. Both halves tolerate repeats.
func CaptureAndTransferVendor(svc settlement.Service, orderSvc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req captureRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.HoldForIntent(r.Context(), req.PaymentIntentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transfer, err := svc.CaptureAndPayVendor(r.Context(), hold.OrderID, req.VendorAccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := orderSvc.MarkPreparing(r.Context(), hold.OrderID); err != nil {
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			// Already past pending_payment; the capture was a repeat.
		}
		responses.WriteSuccess(w, transferResponse{Success: true, TransferID: transfer.TransferID})
	}
}

// TransferDriver pays the driver leg out of the already captured charge.
func TransferDriver(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req driverTransferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.HoldForIntent(r.Context(), req.PaymentIntentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transfer, err := svc.PayDriver(r.Context(), hold.OrderID, req.DriverAccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transferResponse{Success: true, TransferID: transfer.TransferID})
	}
}

// CancelHold releases an uncaptured hold. Captured holds are rejected.
func CancelHold(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cancelHoldRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hold, err := svc.HoldForIntent(r.Context(), req.PaymentIntentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.CancelHold(r.Context(), hold.OrderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"success": true, "message": "payment hold released"})
	}
}

// Disconnect detaches the caller's connected payout account.
func Disconnect(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req disconnectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// The body's user id must match the authenticated caller.
		if caller := middleware.UserIDFromContext(r.Context()); caller != "" && caller != req.UserID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "cannot act on behalf of another user"))
			return
		}

		userID, _ := uuid.Parse(req.UserID)
		entityID, _ := uuid.Parse(req.EntityID)
		err := svc.Disconnect(r.Context(), settlement.DisconnectParams{
			UserID:     userID,
			EntityID:   entityID,
			EntityType: req.EntityType,
			AccountID:  req.AccountID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"success": true})
	}
}
