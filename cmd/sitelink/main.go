package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sitelink-erp/sitelink/internal/app"
	"github.com/sitelink-erp/sitelink/internal/auth"
	"github.com/sitelink-erp/sitelink/internal/credstore"
	"github.com/sitelink-erp/sitelink/internal/dashboard"
	"github.com/sitelink-erp/sitelink/internal/erpapi"
	"github.com/sitelink-erp/sitelink/internal/impersonation"
	"github.com/sitelink-erp/sitelink/internal/platform/cache"
	"github.com/sitelink-erp/sitelink/internal/platform/db"
	"github.com/sitelink-erp/sitelink/internal/session"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	primary := credstore.NewRedisTier(redisClient, cfg.SessionTTL)
	backup := credstore.NewPGTier(pool, cfg.SessionTTL)
	store := credstore.NewStore(primary, backup, cfg.SessionSecret, logger)

	api := erpapi.NewClient(cfg.ERPAPIBaseURL, cfg.ERPAPITimeout)
	registry := session.NewRegistry(store, api, cfg.SessionIdleTTL, logger)
	selectors := impersonation.NewSelectors(logger)
	cookies := session.NewCookies(cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		AuthHandler:          auth.NewHandler(logger, registry, selectors, cookies),
		ImpersonationHandler: impersonation.NewHandler(logger, registry, selectors, cookies, api),
		DashboardHandler:     dashboard.NewHandler(logger, registry, selectors, cookies, api),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
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
