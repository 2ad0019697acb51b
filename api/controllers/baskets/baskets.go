package baskets

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Shahir-47/sarva-backend/api/middleware"
	"github.com/Shahir-47/sarva-backend/api/responses"
	"github.com/Shahir-47/sarva-backend/api/validators"
	"github.com/Shahir-47/sarva-backend/internal/basket"
	"github.com/Shahir-47/sarva-backend/pkg/db/models"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
)

type upsertItemRequest struct {
	ItemID         string `json:"item_id" validate:"required,uuid"`
	VendorID       string `json:"vendor_id" validate:"required,uuid"`
	Name           string `json:"name" validate:"required,max=200"`
	UnitPriceCents int    `json:"unit_price_cents" validate:"min=0"`
	StockUnits     *int   `json:"stock_units,omitempty"`
	Quantity       int    `json:"quantity" validate:"min=0"`
}

type decrementItemRequest struct {
	ItemID   string `json:"item_id" validate:"required,uuid"`
	VendorID string `json:"vendor_id" validate:"required,uuid"`
}

type basketView struct {
	Vendors    map[uuid.UUID][]models.BasketLine `json:"vendors"`
	TotalItems int                               `json:"total_items"`
	TotalCents int                               `json:"total_cents"`
}

func customerID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	return id, nil
}

func writeBasket(w http.ResponseWriter, r *http.Request, svc basket.Service, customer uuid.UUID, document models.BasketDocument, logg *logger.Logger) {
	count, err := svc.TotalCount(r.Context(), customer)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	total, err := svc.TotalPriceCents(r.Context(), customer)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, basketView{Vendors: document, TotalItems: count, TotalCents: total})
}

// Get returns the whole basket grouped by vendor with running totals.
func Get(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		document, err := svc.Get(r.Context(), customer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeBasket(w, r, svc, customer, document, logg)
	}
}

// UpsertItem sets the absolute quantity for one item. Quantity zero removes
// it; a quantity above known stock leaves the basket untouched.
func UpsertItem(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req upsertItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, _ := uuid.Parse(req.ItemID)
		vendorID, _ := uuid.Parse(req.VendorID)

		document, err := svc.Upsert(r.Context(), customer, models.BasketLine{
			ItemID:         itemID,
			VendorID:       vendorID,
			Name:           req.Name,
			UnitPriceCents: req.UnitPriceCents,
			StockUnits:     req.StockUnits,
			Quantity:       req.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeBasket(w, r, svc, customer, document, logg)
	}
}

// DecrementItem lowers one item's quantity by one, removing it at zero.
func DecrementItem(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req decrementItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, _ := uuid.Parse(req.ItemID)
		vendorID, _ := uuid.Parse(req.VendorID)

		document, err := svc.Decrement(r.Context(), customer, vendorID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeBasket(w, r, svc, customer, document, logg)
	}
}

// RemoveVendor drops every line for one vendor.
func RemoveVendor(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID, err := uuid.Parse(chi.URLParam(r, "vendorId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "vendor id must be a uuid"))
			return
		}

		document, err := svc.RemoveVendor(r.Context(), customer, vendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeBasket(w, r, svc, customer, document, logg)
	}
}

// Clear empties the entire basket.
func Clear(svc basket.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := customerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ClearAll(r.Context(), customer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, basketView{Vendors: models.BasketDocument{}})
	}
}
