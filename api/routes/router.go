package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shahir-47/sarva-backend/api/controllers"
	basketcontrollers "github.com/Shahir-47/sarva-backend/api/controllers/baskets"
	checkoutcontrollers "github.com/Shahir-47/sarva-backend/api/controllers/checkoutflow"
	deliverycontrollers "github.com/Shahir-47/sarva-backend/api/controllers/deliveryquotes"
	ordercontrollers "github.com/Shahir-47/sarva-backend/api/controllers/orders"
	paymentcontrollers "github.com/Shahir-47/sarva-backend/api/controllers/payments"
	"github.com/Shahir-47/sarva-backend/api/middleware"
	"github.com/Shahir-47/sarva-backend/internal/basket"
	checkoutsvc "github.com/Shahir-47/sarva-backend/internal/checkout"
	"github.com/Shahir-47/sarva-backend/internal/delivery"
	"github.com/Shahir-47/sarva-backend/internal/orders"
	"github.com/Shahir-47/sarva-backend/internal/settlement"
	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db"
	"github.com/Shahir-47/sarva-backend/pkg/enums"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/redis"
)

// Deps bundles everything the router mounts. Nil optional members (redis,
// metrics gatherer) degrade gracefully: idempotency and rate limiting become
// pass-through and /metrics serves the default gatherer.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      *redis.Client
	Gatherer   prometheus.Gatherer
	Baskets    basket.Service
	Delivery   *delivery.Engine
	Orders     orders.Service
	Settlement settlement.Service
	Checkout   checkoutsvc.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	quotePolicy := middleware.NewRateLimitPolicy(
		"delivery-quote",
		cfg.RateLimit.QuoteWindow,
		cfg.RateLimit.QuoteIPLimit,
		cfg.RateLimit.QuoteUserLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.DependencyPinger{
			"database": deps.DB,
			"redis":    redisPinger(deps.Redis),
		}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.With(middleware.RateLimit(quotePolicy, deps.Redis, logg)).
			Get("/delivery/distance", deliverycontrollers.Distance(deps.Delivery, logg))
		r.With(middleware.RateLimit(quotePolicy, deps.Redis, logg)).
			Post("/delivery/distance", deliverycontrollers.Distance(deps.Delivery, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActor(logg))

			r.Route("/basket", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleCustomer))
				r.Get("/", basketcontrollers.Get(deps.Baskets, logg))
				r.Put("/items", basketcontrollers.UpsertItem(deps.Baskets, logg))
				r.Post("/items/decrement", basketcontrollers.DecrementItem(deps.Baskets, logg))
				r.Delete("/vendors/{vendorId}", basketcontrollers.RemoveVendor(deps.Baskets, logg))
				r.Delete("/", basketcontrollers.Clear(deps.Baskets, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleCustomer))
				r.Post("/", checkoutcontrollers.Begin(deps.Checkout, logg))
				r.Post("/confirm", checkoutcontrollers.Confirm(deps.Checkout, logg))
				r.Post("/abandon", checkoutcontrollers.Abandon(deps.Checkout, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/holds", paymentcontrollers.CreateHold(deps.Settlement, logg))
				r.Post("/holds/cancel", paymentcontrollers.CancelHold(deps.Settlement, logg))
				r.Post("/capture-and-transfer-vendor", paymentcontrollers.CaptureAndTransferVendor(deps.Settlement, deps.Orders, logg))
				r.Post("/transfer-driver", paymentcontrollers.TransferDriver(deps.Settlement, logg))
				r.Post("/disconnect", paymentcontrollers.Disconnect(deps.Settlement, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.ActorRoleDriver)).
					Get("/claimable", ordercontrollers.Claimable(deps.Orders, logg))
				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", ordercontrollers.Detail(deps.Orders, logg))
					r.With(middleware.RequireRole(logg, enums.ActorRoleVendor)).
						Post("/ready", ordercontrollers.Ready(deps.Orders, logg))
					r.With(middleware.RequireRole(logg, enums.ActorRoleDriver)).
						Post("/claim", ordercontrollers.Claim(deps.Orders, logg))
					r.With(middleware.RequireRole(logg, enums.ActorRoleDriver)).
						Post("/pickup-complete", ordercontrollers.PickupComplete(deps.Orders, logg))
					r.With(middleware.RequireRole(logg, enums.ActorRoleDriver)).
						Post("/deliver", ordercontrollers.Deliver(deps.Orders, deps.Settlement, logg))
					r.Post("/cancel", ordercontrollers.Cancel(deps.Orders, deps.Settlement, logg))
				})
			})
		})
	})

	return r
}

// redisPinger keeps a typed nil *redis.Client from sneaking into the
// readiness map as a non-nil interface.
func redisPinger(c *redis.Client) controllers.DependencyPinger {
	if c == nil {
		return nil
	}
	return c
}
