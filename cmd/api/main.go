package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/freightline/settlement-engine/api/routes"
	"github.com/freightline/settlement-engine/internal/audit"
	"github.com/freightline/settlement-engine/internal/intents"
	"github.com/freightline/settlement-engine/internal/rail"
	"github.com/freightline/settlement-engine/internal/schedule"
	"github.com/freightline/settlement-engine/internal/settlement"
	"github.com/freightline/settlement-engine/pkg/config"
	"github.com/freightline/settlement-engine/pkg/db"
	"github.com/freightline/settlement-engine/pkg/enums"
	"github.com/freightline/settlement-engine/pkg/logger"
	"github.com/freightline/settlement-engine/pkg/migrate"
	"github.com/freightline/settlement-engine/pkg/outbox"
	"github.com/freightline/settlement-engine/pkg/redis"
)

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

	intentRepo := intents.NewRepository(dbClient.DB())
	scheduleRepo := schedule.NewRepository(dbClient.DB())
	settlementRepo := settlement.NewRepository(dbClient.DB())
	auditRepo := audit.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerRail, err := rail.NewInternalLedgerRail(settlementRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create internal ledger rail", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.ServiceParams{
		Tx:              dbClient,
		Intents:         intentRepo,
		Schedules:       scheduleRepo,
		Settlements:     settlementRepo,
		Audit:           auditRepo,
		Outbox:          outboxService,
		Rails:           rail.NewRegistry(ledgerRail),
		DefaultProvider: provider,
		Logger:          logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	intentsService, err := intents.NewService(dbClient, intentRepo, scheduleRepo, settlementRepo, auditRepo, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create intents service", err)
		os.Exit(1)
	}

	auditService, err := audit.NewService(intentRepo, settlementRepo, auditRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, intentsService, settlementService, auditService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
