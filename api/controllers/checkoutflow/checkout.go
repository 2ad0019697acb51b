package checkoutflow

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/api/middleware"
	"github.com/Shahir-47/sarva-backend/api/responses"
	"github.com/Shahir-47/sarva-backend/api/validators"
	"github.com/Shahir-47/sarva-backend/internal/checkout"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/types"
)

type partyPayload struct {
	DisplayName string  `json:"display_name" validate:"required,max=200"`
	Address     string  `json:"address" validate:"max=500"`
	Phone       string  `json:"phone" validate:"max=40"`
	Email       string  `json:"email" validate:"omitempty,email"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

type beginRequest struct {
	VendorID string       `json:"vendor_id" validate:"required,uuid"`
	TipCents int          `json:"tip_cents" validate:"min=0"`
	Customer partyPayload `json:"customer" validate:"required"`
	Vendor   partyPayload `json:"vendor" validate:"required"`
}

type confirmRequest struct {
	VendorAccountID string `json:"vendor_account_id" validate:"required"`
}

func callerID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	return id, nil
}

func snapshot(p partyPayload) types.PartySnapshot {
	return types.PartySnapshot{
		DisplayName: p.DisplayName,
		Address:     p.Address,
		Phone:       p.Phone,
		Email:       p.Email,
		Location:    types.Coordinates{Lat: p.Lat, Lon: p.Lon},
	}
}

// Begin flattens the caller's basket for one vendor into a pending order and
// opens the payment hold.
func Begin(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req beginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, _ := uuid.Parse(req.VendorID)

		result, err := svc.Begin(r.Context(), checkout.BeginParams{
			CustomerID: customer,
			VendorID:   vendorID,
			TipCents:   req.TipCents,
			Customer:   snapshot(req.Customer),
			Vendor:     snapshot(req.Vendor),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Resumed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}

// Confirm completes checkout after the client confirmed the hold.
func Confirm(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req confirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), customer, req.VendorAccountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Abandon releases the caller's active checkout session and its hold.
func Abandon(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Abandon(r.Context(), customer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"success": true})
	}
}
