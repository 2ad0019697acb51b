package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Shahir-47/sarva-backend/internal/settlement"
	"github.com/Shahir-47/sarva-backend/pkg/config"
	"github.com/Shahir-47/sarva-backend/pkg/db"
	"github.com/Shahir-47/sarva-backend/pkg/instance"
	"github.com/Shahir-47/sarva-backend/pkg/jobs"
	"github.com/Shahir-47/sarva-backend/pkg/logger"
	"github.com/Shahir-47/sarva-backend/pkg/metrics"
	"github.com/Shahir-47/sarva-backend/pkg/redis"
	"github.com/Shahir-47/sarva-backend/pkg/stripe"
)

const lockKey = "settlement-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
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
	settlementMetrics := metrics.NewSettlementMetrics(registry)
	jobMetrics := metrics.NewJobMetrics(registry)

	retryJob, err := settlement.NewRetryJob(
		settlement.NewPaymentsClient(stripeClient),
		settlement.NewRepository(dbClient.DB()),
		logg,
		settlementMetrics,
		cfg.Settlement,
	)
	if err != nil {
		logg.Error(ctx, "failed to create settlement retry job", err)
		os.Exit(1)
	}

	lock, err := jobs.NewRedisLock(redisClient, lockKey, cfg.Settlement.RetryLockTTL)
	if err != nil {
		logg.Error(ctx, "failed to create worker lock", err)
		os.Exit(1)
	}

	worker, err := jobs.NewService(jobs.ServiceParams{
		Logger:   logg,
		Registry: jobs.NewRegistry(retryJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Settlement.RetryInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create worker service", err)
		os.Exit(1)
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": instance.GetID(),
		"interval": cfg.Settlement.RetryInterval.String(),
	})
	logg.Info(logCtx, "starting settlement worker")

	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		logg.Error(logCtx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(logCtx, "settlement worker shut down")
}
