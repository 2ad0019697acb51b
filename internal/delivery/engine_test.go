package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shahir-47/sarva-backend/pkg/config"
	pkgerrors "github.com/Shahir-47/sarva-backend/pkg/errors"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/routing"
	"github.com/Shahir-47/sarva-backend/pkg/types"
)

type stubRouter struct {
	route *routing.Route
	err   error
	calls int
}

func (s *stubRouter) Route(ctx context.Context, origin, destination types.Coordinates) (*routing.Route, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.route, nil
}

type stubCache struct {
	data map[string]string
	miss error
}

func newStubCache() *stubCache {
	return &stubCache{data: make(map[string]string), miss: errors.New("miss")}
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.data[key]
	if !ok {
		return "", s.miss
	}
	return v, nil
}

func (s *stubCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.data[key] = value.(string)
	return nil
}

func (s *stubCache) QuoteKey(a, b string) string { return "quote:" + a + ":" + b }

func newTestEngine(t *testing.T, router Router, cache QuoteCache) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineParams{
		Router: router,
		Cache:  cache,
		Logger: logger.New(logger.Options{ServiceName: "delivery-test"}),
		Config: config.DeliveryConfig{BaseFeeCents: 300, FallbackSpeedKPH: 30, QuoteTTL: time.Minute},
	})
	if err != nil {
		t.Fatalf("construct engine: %v", err)
	}
	return engine
}

var (
	customerCoords = types.Coordinates{Lat: 40.7128, Lon: -74.0060}
	vendorCoords   = types.Coordinates{Lat: 40.7306, Lon: -73.9352}
)

func TestQuoteForUsesRoutingProvider(t *testing.T) {
	t.Parallel()

	router := &stubRouter{route: &routing.Route{DistanceMeters: 4200, DurationSeconds: 540}}
	engine := newTestEngine(t, router, nil)

	quote, err := engine.QuoteFor(context.Background(), customerCoords, vendorCoords)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.ComputedViaFallback {
		t.Fatalf("expected routed quote")
	}
	if quote.DistanceKm != 4.2 {
		t.Fatalf("expected 4.2 km, got %f", quote.DistanceKm)
	}
	// 4.2 km lands in the 2-5 km tier: 300 base + 200
	if quote.FeeCents != 500 {
		t.Fatalf("expected fee 500, got %d", quote.FeeCents)
	}
	if quote.EtaMinutes != 9 || quote.EtaLabel != "9 min" {
		t.Fatalf("unexpected eta %d %q", quote.EtaMinutes, quote.EtaLabel)
	}
}

func TestQuoteForFallsBackOnRouterError(t *testing.T) {
	t.Parallel()

	router := &stubRouter{err: errors.New("timeout")}
	engine := newTestEngine(t, router, nil)

	quote, err := engine.QuoteFor(context.Background(), customerCoords, vendorCoords)
	if err != nil {
		t.Fatalf("routing failure must not propagate: %v", err)
	}
	if !quote.ComputedViaFallback {
		t.Fatalf("expected fallback quote")
	}
	if quote.DistanceMeters <= 0 {
		t.Fatalf("expected haversine distance, got %f", quote.DistanceMeters)
	}
	if quote.FeeCents < 300 {
		t.Fatalf("fee must include base fee, got %d", quote.FeeCents)
	}
}

func TestQuoteForWithoutRouterIsAlwaysFallback(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil, nil)
	quote, err := engine.QuoteFor(context.Background(), customerCoords, vendorCoords)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !quote.ComputedViaFallback {
		t.Fatalf("expected fallback quote without router")
	}
}

func TestQuoteForCachesPerCoordinatePair(t *testing.T) {
	t.Parallel()

	router := &stubRouter{route: &routing.Route{DistanceMeters: 3000, DurationSeconds: 300}}
	cache := newStubCache()
	engine, err := NewEngine(EngineParams{
		Router:      router,
		Cache:       cache,
		Logger:      logger.New(logger.Options{ServiceName: "delivery-test"}),
		Config:      config.DeliveryConfig{BaseFeeCents: 300, FallbackSpeedKPH: 30, QuoteTTL: time.Minute},
		IsCacheMiss: func(err error) bool { return err == cache.miss },
	})
	if err != nil {
		t.Fatalf("construct engine: %v", err)
	}

	first, err := engine.QuoteFor(context.Background(), customerCoords, vendorCoords)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	second, err := engine.QuoteFor(context.Background(), customerCoords, vendorCoords)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if router.calls != 1 {
		t.Fatalf("expected one provider call, got %d", router.calls)
	}
	if first.FeeCents != second.FeeCents || first.EtaLabel != second.EtaLabel {
		t.Fatalf("cached quote mismatch: %+v vs %+v", first, second)
	}

	// different pair misses the cache
	if _, err := engine.QuoteFor(context.Background(), customerCoords, types.Coordinates{Lat: 40.75, Lon: -73.99}); err != nil {
		t.Fatalf("quote: %v", err)
	}
	if router.calls != 2 {
		t.Fatalf("expected second provider call for new pair, got %d", router.calls)
	}
}

func TestQuoteForRejectsInvalidCoordinates(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, nil, nil)
	_, err := engine.QuoteFor(context.Background(), types.Coordinates{Lat: 91, Lon: 0}, vendorCoords)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFeeForDistanceIsMonotonic(t *testing.T) {
	t.Parallel()

	prev := 0
	for _, km := range []float64{0.5, 2, 3, 5, 7, 10, 12, 15, 40} {
		fee := feeForDistance(300, km)
		if fee < prev {
			t.Fatalf("fee decreased at %f km: %d < %d", km, fee, prev)
		}
		prev = fee
	}
}

func TestFormatETA(t *testing.T) {
	t.Parallel()

	cases := []struct {
		minutes int
		want    string
	}{
		{minutes: 0, want: "1 min"},
		{minutes: 9, want: "9 min"},
		{minutes: 59, want: "59 min"},
		{minutes: 60, want: "1 hr"},
		{minutes: 75, want: "1 hr 15 min"},
		{minutes: 135, want: "2 hr 15 min"},
	}
	for _, tc := range cases {
		if got := formatETA(tc.minutes); got != tc.want {
			t.Fatalf("formatETA(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}
