package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/Shahir-47/sarva-backend/pkg/config"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/geo"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/metrics"
	"github.com/Shahir-47/sarva-backend/pkg/routing"
	"github.com/Shahir-47/sarva-backend/pkg/types"
)

const (
	sourceRouting  = "routing"
	sourceFallback = "fallback"
	sourceCache    = "cache"

	metersPerKm  = 1000.0
	milesPerKm   = 0.621371
)

// Quote is the priced answer for one coordinate pair. It is immutable once
// computed; tip and basket changes never touch it.
type Quote struct {
	DistanceMeters      float64 `json:"distance_meters"`
	DistanceKm          float64 `json:"distance_km"`
	DistanceMiles       float64 `json:"distance_miles"`
	DurationSeconds     float64 `json:"duration_seconds"`
	EtaMinutes          int     `json:"eta_minutes"`
	EtaLabel            string  `json:"eta_label"`
	FeeCents            int     `json:"fee_cents"`
	ComputedViaFallback bool    `json:"computed_via_fallback"`
}

// Router is the slice of the routing client the engine needs.
type Router interface {
	Route(ctx context.Context, origin, destination types.Coordinates) (*routing.Route, error)
}

// QuoteCache stores computed quotes keyed by coordinate pair.
type QuoteCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	QuoteKey(originKey, destinationKey string) string
}

type cacheMissFunc func(err error) bool

// Engine turns a coordinate pair into a delivery fee and an ETA.
type Engine struct {
	router      Router
	cache       QuoteCache
	logg        *logger.Logger
	metrics     *metrics.DeliveryMetrics
	cfg         config.DeliveryConfig
	isCacheMiss cacheMissFunc
}

// EngineParams configure the pricing engine.
type EngineParams struct {
	Router      Router
	Cache       QuoteCache
	Logger      *logger.Logger
	Metrics     *metrics.DeliveryMetrics
	Config      config.DeliveryConfig
	IsCacheMiss func(err error) bool
}

// NewEngine builds the delivery pricing engine. Router and cache are both
// optional: without a router every quote is a fallback quote, and without a
// cache every quote is recomputed.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Config.BaseFeeCents < 0 {
		return nil, fmt.Errorf("base fee must be non-negative")
	}
	if params.Config.FallbackSpeedKPH <= 0 {
		params.Config.FallbackSpeedKPH = 30
	}
	isMiss := params.IsCacheMiss
	if isMiss == nil {
		isMiss = func(error) bool { return true }
	}
	return &Engine{
		router:      params.Router,
		cache:       params.Cache,
		logg:        params.Logger,
		metrics:     params.Metrics,
		cfg:         params.Config,
		isCacheMiss: isMiss,
	}, nil
}

// QuoteFor prices the pair, preferring cache, then the routing provider, then
// the haversine fallback. Routing failures never propagate: the caller always
// gets a quote, flagged when its accuracy is degraded.
func (e *Engine) QuoteFor(ctx context.Context, customer, vendor types.Coordinates) (*Quote, error) {
	if err := customer.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer coordinates")
	}
	if err := vendor.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor coordinates")
	}

	cacheKey := ""
	if e.cache != nil {
		cacheKey = e.cache.QuoteKey(geo.CacheKey(customer), geo.CacheKey(vendor))
		if cached, err := e.cache.Get(ctx, cacheKey); err == nil {
			var quote Quote
			if unmarshalErr := json.Unmarshal([]byte(cached), &quote); unmarshalErr == nil {
				e.metrics.IncQuote(sourceCache)
				return &quote, nil
			}
		} else if !e.isCacheMiss(err) {
			e.logg.Warn(e.logg.WithField(ctx, "cache_key", cacheKey), "quote cache read failed")
		}
	}

	quote := e.compute(ctx, customer, vendor)

	if e.cache != nil && cacheKey != "" {
		if payload, err := json.Marshal(quote); err == nil {
			if err := e.cache.Set(ctx, cacheKey, string(payload), e.cfg.QuoteTTL); err != nil {
				e.logg.Warn(e.logg.WithField(ctx, "cache_key", cacheKey), "quote cache write failed")
			}
		}
	}

	return quote, nil
}

func (e *Engine) compute(ctx context.Context, customer, vendor types.Coordinates) *Quote {
	if e.router != nil {
		route, err := e.router.Route(ctx, vendor, customer)
		if err == nil && route.DistanceMeters > 0 {
			e.metrics.IncQuote(sourceRouting)
			return e.buildQuote(route.DistanceMeters, route.DurationSeconds, false)
		}
		if err != nil {
			e.logg.Warn(e.logg.WithField(ctx, "error", err.Error()), "routing provider failed, using fallback")
		}
	}

	distanceMeters := geo.DistanceMeters(vendor, customer)
	durationSeconds := distanceMeters / metersPerKm / e.cfg.FallbackSpeedKPH * 3600
	e.metrics.IncQuote(sourceFallback)
	return e.buildQuote(distanceMeters, durationSeconds, true)
}

func (e *Engine) buildQuote(distanceMeters, durationSeconds float64, fallback bool) *Quote {
	distanceKm := distanceMeters / metersPerKm
	etaMinutes := int(math.Ceil(durationSeconds / 60))
	return &Quote{
		DistanceMeters:      distanceMeters,
		DistanceKm:          distanceKm,
		DistanceMiles:       distanceKm * milesPerKm,
		DurationSeconds:     durationSeconds,
		EtaMinutes:          etaMinutes,
		EtaLabel:            formatETA(etaMinutes),
		FeeCents:            feeForDistance(e.cfg.BaseFeeCents, distanceKm),
		ComputedViaFallback: fallback,
	}
}
