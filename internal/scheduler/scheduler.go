// Package scheduler runs the background goroutines of the market lifecycle:
//  1. closeLoop     – moves expired active markets to closed.
//  2. reconcileLoop – compares the trade journal with the pricing engine.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dependencies
// ──────────────────────────────────────────────────────────────────────────────

// MarketCloser closes markets whose end date has passed. Implemented by
// service.MarketService.
type MarketCloser interface {
	CloseExpired(ctx context.Context) (int, error)
}

// Reconciler checks every open market. Implemented by service.Reconciler.
type Reconciler interface {
	CheckAll(ctx context.Context) ([]*domain.ReconciliationReport, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the lifecycle loops. Call Start(ctx) once from main(); cancel
// the context to shut it down.
type Scheduler struct {
	closer     MarketCloser
	reconciler Reconciler
	cfg        config.SettlementConfig
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(closer MarketCloser, reconciler Reconciler, cfg *config.Config, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		closer:     closer,
		reconciler: reconciler,
		cfg:        cfg.Settlement,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start launches the loops and returns immediately. A loop whose interval is
// not positive is not started.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.CloseInterval > 0 {
		go s.loop(ctx, "closeLoop", s.cfg.CloseInterval, s.closeExpired)
	}
	if s.cfg.ReconcileInterval > 0 {
		go s.loop(ctx, "reconcileLoop", s.cfg.ReconcileInterval, s.reconcile)
	}
	s.logger.Info("scheduler started",
		"close_interval", s.cfg.CloseInterval,
		"reconcile_interval", s.cfg.ReconcileInterval)
}

// loop calls tick every interval until ctx is done. A panicking tick is
// logged and the loop keeps going.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(name + ": shutting down")
			return
		case <-ticker.C:
			s.runTick(ctx, name, tick)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, name string, tick func(context.Context)) {
	defer s.recoverAndLog(name)
	tick(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Ticks
// ──────────────────────────────────────────────────────────────────────────────

func (s *Scheduler) closeExpired(ctx context.Context) {
	n, err := s.closer.CloseExpired(ctx)
	if err != nil {
		s.logger.Error("closeLoop: CloseExpired", "err", err)
		return
	}
	if n > 0 {
		s.logger.Info("closeLoop: markets closed", "count", n)
	}
}

func (s *Scheduler) reconcile(ctx context.Context) {
	reports, err := s.reconciler.CheckAll(ctx)
	if err != nil {
		s.logger.Error("reconcileLoop: CheckAll", "err", err)
		return
	}
	dirty := 0
	for _, r := range reports {
		if !r.OK() {
			dirty++
		}
	}
	s.logger.Info("reconcileLoop: pass complete", "markets", len(reports), "inconsistent", dirty)
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred around each tick so one bad pass does not stop
// the loop.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
