package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/events"
)

const (
	// localWriteTimeout bounds a transaction that must finish once the
	// pricing engine has committed its side.
	localWriteTimeout = 15 * time.Second
	// payoutTimeout bounds the post-commit payout of a resolution.
	payoutTimeout = 30 * time.Second
)

// SettlementService is the bet lifecycle orchestrator. It places bets,
// resolves and cancels markets, keeping the trade journal, the pricing engine
// and the ledger consistent without a shared transaction:
//
//	buy:            engine, then local commit
//	resolve/cancel: local commit, then engine payout
//
// It holds no lock of its own; isolation comes from the store's row locks and
// conditional updates.
type SettlementService struct {
	store     TxRunner
	markets   MarketStore
	users     UserStore
	engine    PricingEngine
	ledger    Ledger
	publisher events.Publisher
	cfg       config.SettlementConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(
	store TxRunner,
	markets MarketStore,
	users UserStore,
	engine PricingEngine,
	ledger Ledger,
	publisher events.Publisher,
	cfg *config.Config,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		store:     store,
		markets:   markets,
		users:     users,
		engine:    engine,
		ledger:    ledger,
		publisher: publisher,
		cfg:       cfg.Settlement,
		logger:    logger.With("component", "settlement"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// publish emits e, logging instead of failing: a committed transition is
// never undone because a notification could not be sent.
func (s *SettlementService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("publish failed", "event", e.Kind(), "err", err)
	}
}
