package deliveryquotes

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Shahir-47/sarva-backend/api/responses"
	"github.com/Shahir-47/sarva-backend/api/validators"
	"github.com/Shahir-47/sarva-backend/internal/delivery"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/types"
)

type coordinatePair struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type distanceRequest struct {
	Origin      coordinatePair `json:"origin"`
	Destination coordinatePair `json:"destination"`
}

type distanceResponse struct {
	Distance            float64 `json:"distance"`
	DistanceInKm        float64 `json:"distance_in_km"`
	DistanceInMiles     float64 `json:"distance_in_miles"`
	Duration            float64 `json:"duration"`
	Eta                 string  `json:"eta"`
	FeeCents            int     `json:"fee_cents"`
	ComputedViaFallback bool    `json:"computed_via_fallback"`
}

// Distance prices the origin/destination pair. POST carries a JSON body; GET
// reads the pair from query parameters for quick client probes.
func Distance(engine *delivery.Engine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var origin, destination types.Coordinates
		var err error
		if r.Method == http.MethodGet {
			origin, destination, err = pairFromQuery(r)
		} else {
			var req distanceRequest
			if err = validators.DecodeJSONBody(r, &req); err == nil {
				origin = types.Coordinates{Lat: req.Origin.Lat, Lon: req.Origin.Lon}
				destination = types.Coordinates{Lat: req.Destination.Lat, Lon: req.Destination.Lon}
			}
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := engine.QuoteFor(r.Context(), origin, destination)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, distanceResponse{
			Distance:            quote.DistanceMeters,
			DistanceInKm:        quote.DistanceKm,
			DistanceInMiles:     quote.DistanceMiles,
			Duration:            quote.DurationSeconds,
			Eta:                 quote.EtaLabel,
			FeeCents:            quote.FeeCents,
			ComputedViaFallback: quote.ComputedViaFallback,
		})
	}
}

func pairFromQuery(r *http.Request) (types.Coordinates, types.Coordinates, error) {
	origin, err := coordsFromQuery(r, "origin_lat", "origin_lon")
	if err != nil {
		return types.Coordinates{}, types.Coordinates{}, err
	}
	destination, err := coordsFromQuery(r, "destination_lat", "destination_lon")
	if err != nil {
		return types.Coordinates{}, types.Coordinates{}, err
	}
	return origin, destination, nil
}

func coordsFromQuery(r *http.Request, latKey, lonKey string) (types.Coordinates, error) {
	lat, err := parseFloat(r, latKey)
	if err != nil {
		return types.Coordinates{}, err
	}
	lon, err := parseFloat(r, lonKey)
	if err != nil {
		return types.Coordinates{}, err
	}
	return types.Coordinates{Lat: lat, Lon: lon}, nil
}

func parseFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "missing coordinate").WithDetails(map[string]any{"field": key})
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "coordinate must be numeric").WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
