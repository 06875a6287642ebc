// Package main is the entry point for the settlement API server. It wires
// together all services and starts the HTTP server alongside the WebSocket
// hub, the quote recorder and the background scheduler.
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
	"github.com/wallfair/settlement/internal/api"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/events"
	"github.com/wallfair/settlement/internal/ledger"
	"github.com/wallfair/settlement/internal/repository"
	"github.com/wallfair/settlement/internal/scheduler"
	"github.com/wallfair/settlement/internal/service"
	"github.com/wallfair/settlement/internal/ws"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting settlement server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Database ───────────────────────────────────────────────────────────
	db, err := repository.Open(ctx, cfg.DB)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if cfg.DB.AutoMigrate {
		if err = repository.Migrate(ctx, db, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	// ── 4. Event bus ──────────────────────────────────────────────────────────
	rdb, err := events.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Error("redis connection failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()
	bus := events.NewRedisBus(rdb, cfg.Redis.Channel, logger.With("component", "bus"))

	// ── 5. Repositories + remote services ─────────────────────────────────────
	marketRepo := repository.NewMarketRepository(db)
	tradeRepo := repository.NewTradeRepository(db)
	userRepo := repository.NewUserRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	store := repository.NewStore(db, marketRepo, tradeRepo)

	engine := amm.New(cfg.AMM)
	tokens := ledger.New(cfg.Ledger)

	// ── 6. Services ───────────────────────────────────────────────────────────
	settlementSvc := service.NewSettlementService(store, marketRepo, userRepo, engine, tokens, bus, cfg, logger)
	marketSvc := service.NewMarketService(marketRepo, quoteRepo, bus, logger)
	tradeSvc := service.NewTradeService(tradeRepo)
	reconciler := service.NewReconciler(marketRepo, tradeRepo, engine, logger)
	recorder := service.NewQuoteRecorder(engine, quoteRepo, cfg.Settlement.QuoteBackdate, logger)
	verifier := service.NewTokenVerifier(cfg.JWT.AccessSecret)

	// ── 7. WebSocket hub + bus consumers ──────────────────────────────────────
	hub := ws.NewHub(verifier, cfg.Server.AllowedOrigins, logger)
	go hub.Run(ctx)

	hubFeed, err := bus.Subscribe(ctx)
	if err != nil {
		logger.Error("bus subscribe failed", "consumer", "hub", "err", err)
		os.Exit(1)
	}
	go hub.Consume(ctx, hubFeed)

	recorderFeed, err := bus.Subscribe(ctx)
	if err != nil {
		logger.Error("bus subscribe failed", "consumer", "quote_recorder", "err", err)
		os.Exit(1)
	}
	go recorder.Run(ctx, recorderFeed)
	logger.Info("websocket hub and quote recorder started")

	// ── 8. Scheduler ──────────────────────────────────────────────────────────
	scheduler.NewScheduler(marketSvc, reconciler, cfg, logger).Start(ctx)

	// ── 9. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(ctx, api.RouterDeps{
		Tokens:     verifier,
		Bets:       settlementSvc,
		Positions:  tradeSvc,
		Markets:    marketSvc,
		Settlement: settlementSvc,
		Checker:    reconciler,
		Hub:        hub,
		Cfg:        cfg,
		Logger:     logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 10. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	// ── 11. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	logger.Info("server stopped cleanly")
}
