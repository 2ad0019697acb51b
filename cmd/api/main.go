package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Shahir-47/sarva-backend/api/routes"
	"github.com/Shahir-47/sarva-backend/internal/basket"
	checkoutsvc "github.com/Shahir-47/sarva-backend/internal/checkout"
	"github.com/Shahir-47/sarva-backend/internal/delivery"
	"github.com/Shahir-47/sarva-backend/internal/orders"
	"github.com/Shahir-47/sarva-backend/internal/settlement"
	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/metrics"
	"github.com/Shahir-47/sarva-backend/pkg/migrate"
	"github.com/Shahir-47/sarva-backend/pkg/redis"
	"github.com/Shahir-47/sarva-backend/pkg/routing"
	"github.com/Shahir-47/sarva-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to initialize stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	deliveryMetrics := metrics.NewDeliveryMetrics(registry)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	var router delivery.Router
	if cfg.Routing.BaseURL != "" {
		routingClient, err := routing.NewClient(
			cfg.Routing.BaseURL,
			cfg.Routing.APIKey,
			routing.WithTimeout(cfg.Routing.Timeout),
		)
		if err != nil {
			logg.Error(ctx, "failed to initialize routing client", err)
			os.Exit(1)
		}
		router = routingClient
	} else {
		logg.Warn(ctx, "no routing service configured, every delivery quote will use the fallback estimate")
	}

	basketSvc, err := basket.NewService(mustBasketStore(ctx, logg, dbClient), logg)
	if err != nil {
		logg.Error(ctx, "failed to create basket service", err)
		os.Exit(1)
	}

	deliveryEngine, err := delivery.NewEngine(delivery.EngineParams{
		Router:      router,
		Cache:       redisClient,
		Logger:      logg,
		Metrics:     deliveryMetrics,
		Config:      cfg.Delivery,
		IsCacheMiss: redis.IsNil,
	})
	if err != nil {
		logg.Error(ctx, "failed to create delivery engine", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersSvc, err := orders.NewService(ordersRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(
		settlement.NewPaymentsClient(stripeClient),
		settlement.NewRepository(dbClient.DB()),
		ordersRepo,
		logg,
		settlementMetrics,
		cfg.Settlement,
	)
	if err != nil {
		logg.Error(ctx, "failed to create settlement service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkoutsvc.NewService(
		checkoutsvc.NewRepository(dbClient.DB()),
		basketSvc,
		deliveryEngine,
		ordersSvc,
		settlementSvc,
		logg,
		cfg.Checkout,
	)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Gatherer:   registry,
			Baskets:    basketSvc,
			Delivery:   deliveryEngine,
			Orders:     ordersSvc,
			Settlement: settlementSvc,
			Checkout:   checkoutSvc,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "graceful shutdown failed", err)
		}
	}
}

func mustBasketStore(ctx context.Context, logg *logger.Logger, dbClient *db.Client) basket.Store {
	store, err := basket.NewGormStore(dbClient.DB())
	if err != nil {
		logg.Error(ctx, "failed to create basket store", err)
		os.Exit(1)
	}
	return store
}
