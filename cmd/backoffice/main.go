// Package main is the entry point for the settlement operations server.
// It exposes admin-only endpoints protected by an IP allowlist and the
// admin role.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wallfair/settlement/internal/amm"
	"github.com/wallfair/settlement/internal/backoffice"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/events"
	"github.com/wallfair/settlement/internal/repository"
	"github.com/wallfair/settlement/internal/service"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting settlement backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := repository.Open(ctx, cfg.DB)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// ── Repositories + services ───────────────────────────────────────────────
	marketRepo := repository.NewMarketRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	engine := amm.New(cfg.AMM)

	// The close sweep publishes nothing, so this process needs no bus.
	marketSvc := service.NewMarketService(marketRepo, quoteRepo, events.Discard{}, logger)
	reconciler := service.NewReconciler(marketRepo, tradeRepo, engine, logger)

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		Tokens:     service.NewTokenVerifier(cfg.JWT.AccessSecret),
		Markets:    marketRepo,
		Closer:     marketSvc,
		Reconciler: reconciler,
		Cfg:        cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 2 * time.Minute, // full reconciliation passes can be slow
	}

	go func() {
		logger.Info("backoffice server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("backoffice: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}
}
