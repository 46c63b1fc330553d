package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-sales/internal/app"
	"github.com/odyssey-erp/odyssey-sales/internal/observability"
	"github.com/odyssey-erp/odyssey-sales/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open document store", slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	redisClient, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	defaults, err := documents.LoadDefaults(cfg.PricingDefaultsFile)
	if err != nil {
		logger.Error("load pricing defaults", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	var catalog sales.CatalogPricer
	if backend.Catalog != nil {
		catalog = sales.NewPriceCache(backend.Catalog, redisClient, cfg.CatalogCacheTTL, logger)
	}

	salesService := sales.NewService(sales.ServiceParams{
		Store:    backend.Store,
		Catalog:  catalog,
		Drafts:   sales.NewRedisDraftStore(redisClient, cfg.DraftTTL),
		Defaults: defaults,
		Logger:   logger,
		Metrics:  metrics,
	})
	salesHandler := sales.NewHandler(logger, salesService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	checks := append([]app.HealthCheck{{
		Name:  "redis",
		Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}}, backend.Checks...)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		SalesHandler: salesHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
		HealthChecks: checks,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
