package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/api/middleware"
	"github.com/Shahir-47/sarva-backend/api/responses"
	"github.com/Shahir-47/sarva-backend/api/validators"
	internalorders "github.com/Shahir-47/sarva-backend/internal/orders"
	"github.com/Shahir-47/sarva-backend/internal/settlement"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/pagination"
)

type deliverRequest struct {
	DriverAccountID string `json:"driver_account_id" validate:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func actorFromRequest(r *http.Request) (internalorders.Actor, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	role, err := enums.ParseActorRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return internalorders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller role missing or unknown")
	}
	return internalorders.Actor{ID: id, Role: role}, nil
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id must be a uuid")
	}
	return id, nil
}

// List returns the caller's orders from their role's perspective.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		switch actor.Role {
		case enums.ActorRoleCustomer:
			list, err := svc.ListForCustomer(r.Context(), actor.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, list)
		case enums.ActorRoleVendor:
			list, err := svc.ListForVendor(r.Context(), actor.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, list)
		case enums.ActorRoleDriver:
			list, err := svc.ListForDriver(r.Context(), actor.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, list)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role has no order perspective"))
		}
	}
}

// Claimable lists orders waiting for a driver.
func Claimable(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListClaimable(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"orders":      page.Orders,
			"next_cursor": page.NextCursor,
		})
	}
}

// Detail returns one order, restricted to its participants.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !participates(actor, order.CustomerID, order.VendorID, order.DriverID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another party"))
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func participates(actor internalorders.Actor, customerID, vendorID uuid.UUID, driverID *uuid.UUID) bool {
	switch actor.Role {
	case enums.ActorRoleCustomer:
		return actor.ID == customerID
	case enums.ActorRoleVendor:
		return actor.ID == vendorID
	case enums.ActorRoleDriver:
		return driverID != nil && actor.ID == *driverID
	case enums.ActorRoleSystem:
		return true
	}
	return false
}

// Ready marks a preparing order as waiting for a driver.
func Ready(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.MarkReady(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Claim atomically assigns the calling driver to a waiting order. Exactly one
// concurrent caller wins; the rest get a conflict.
func Claim(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Claim(r.Context(), orderID, actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// PickupComplete moves a claimed order into active delivery.
func PickupComplete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.StartDelivering(r.Context(), orderID, actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Deliver completes the delivery and pays the driver leg. The transfer is
// idempotent, so retrying a deliver that already paid out returns the same
// transfer.
func Deliver(svc internalorders.Service, settlementSvc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req deliverRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Deliver(r.Context(), orderID, actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		transfer, err := settlementSvc.PayDriver(r.Context(), orderID, req.DriverAccountID)
		if err != nil {
			// The order is delivered; a failed payout is queued for the
			// reconciliation worker rather than unwinding the delivery.
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order": order, "transfer": transfer})
	}
}

// Cancel cancels the order and releases the hold when one is still open.
func Cancel(svc internalorders.Service, settlementSvc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Cancel(r.Context(), orderID, actor, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if result.HoldNeedsRelease {
			if err := settlementSvc.CancelHold(r.Context(), orderID); err != nil {
				// Best effort: the order is cancelled either way and the
				// hold expires processor-side if the release keeps failing.
				logg.Error(logg.WithOrderID(r.Context(), orderID.String()),
					"failed to release hold for cancelled order", err)
			}
		}
		responses.WriteSuccess(w, result.Order)
	}
}
