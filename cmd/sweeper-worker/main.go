package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/internal/cron"
	"github.com/freightline/settlement-engine/internal/rail"
	"github.com/freightline/settlement-engine/internal/settlement"
	"github.com/freightline/settlement-engine/internal/sweeper"
	"github.com/freightline/settlement-engine/pkg/config"
	"github.com/freightline/settlement-engine/pkg/db"
	"github.com/freightline/settlement-engine/pkg/enums"
	"github.com/freightline/settlement-engine/pkg/logger"
	"github.com/freightline/settlement-engine/pkg/metrics"
	"github.com/freightline/settlement-engine/pkg/migrate"
	"github.com/freightline/settlement-engine/pkg/outbox"
	"github.com/freightline/settlement-engine/pkg/redis"
)

const lockKeyFormat = "settle:sweeper-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "sweeper-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "sweeper-worker"

	logg = logger.New(logger.Options{
		ServiceName: "sweeper-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	provider, err := enums.ParseRailProvider(cfg.Rail.DefaultProvider)
	if err != nil {
		logg.Error(context.Background(), "invalid default rail provider", err)
		os.Exit(1)
	}

	settlementRepo := settlement.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerRail, err := rail.NewInternalLedgerRail(settlementRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create internal ledger rail", err)
		os.Exit(1)
	}

	sweeperMetrics := metrics.NewSweeperMetrics(prometheus.DefaultRegisterer)

	sweepJob, err := sweeper.NewJob(sweeper.JobParams{
		Tx:          dbClient,
		Settlements: settlementRepo,
		Audit:       auditRepo,
		Outbox:      outboxService,
		Rails:       rail.NewRegistry(ledgerRail),
		Provider:    provider,
		Metrics:     sweeperMetrics,
		Logger:      logg,
		BatchSize:   cfg.Sweeper.BatchSize,
		ClaimTTL:    cfg.Sweeper.ClaimTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Sweeper.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     lock,
		Metrics:  sweeperMetrics,
		Interval: cfg.Sweeper.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting sweeper worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sweeper worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sweeper worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
