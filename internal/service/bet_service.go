package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallfair/settlement/internal/amm"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/events"
	"github.com/wallfair/settlement/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet buys outcome tokens for a user and journals the trade.
//
// The pricing engine commits the buy first; the Trade row is the last write of
// the local transaction. Once the engine has accepted the buy the local write
// runs to completion even if ctx is cancelled. Everything after the commit is
// best-effort.
func (s *SettlementService) PlaceBet(ctx context.Context, req domain.PlaceBetRequest) (*domain.PlaceBetResult, error) {
	log := s.logger.With("op", "PlaceBet", "user_id", req.UserID, "market_id", req.MarketID)

	// ── 1. Input validation ──────────────────────────────────────────────────
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// ── 2. Load user and market ──────────────────────────────────────────────
	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		return nil, s.settlementErr(log, "PlaceBet", req.UserID, req.MarketID, err)
	}
	market, err := s.markets.GetByID(ctx, req.MarketID)
	if err != nil {
		return nil, s.settlementErr(log, "PlaceBet", req.UserID, req.MarketID, err)
	}
	if !market.ValidOutcome(req.OutcomeIndex) {
		return nil, domain.ErrInvalidOutcome
	}
	if !market.IsTradable(s.now()) {
		return nil, domain.ErrMarketNotTradable
	}

	// ── 3. Affordability (the ledger stays authoritative) ────────────────────
	account := domain.UserAccount(req.UserID)
	scaledBalance, err := s.ledger.BalanceOf(ctx, account)
	if err != nil {
		return nil, s.settlementErr(log, "PlaceBet", req.UserID, req.MarketID, err)
	}
	balance := domain.FromScaled(scaledBalance)
	if balance.LessThan(req.Stake) {
		return nil, domain.ErrInsufficientBalance
	}

	// ── 4. Engine buy, then journal ──────────────────────────────────────────
	amount := domain.ToScaled(req.Stake)
	minTokens := domain.MinTokensScaled(req.MinOutcomeTokens)

	var (
		trade  *domain.Trade
		bought bool
	)
	txCtx, cancel := detached(ctx, localWriteTimeout)
	defer cancel()

	err = s.store.WithTransaction(txCtx, func(txCtx context.Context, tx repository.Tx) error {
		now := s.now()
		if _, err := tx.LockTradable(txCtx, req.MarketID, now); err != nil {
			return err
		}
		res, err := s.engine.Buy(txCtx, amm.BuyRequest{
			MarketID:         req.MarketID,
			Buyer:            req.UserID.String(),
			Amount:           amount,
			OutcomeIndex:     req.OutcomeIndex,
			MinOutcomeTokens: minTokens,
		})
		if err != nil {
			return err
		}
		bought = true

		trade = &domain.Trade{
			ID:               uuid.New(),
			UserID:           req.UserID,
			MarketID:         req.MarketID,
			OutcomeIndex:     req.OutcomeIndex,
			InvestmentAmount: domain.FromScaled(amount),
			OutcomeTokens:    domain.FromScaled(res.OutcomeTokens),
			Status:           domain.TradeStatusActive,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.InsertTrade(txCtx, trade)
	})
	if err != nil {
		if bought {
			// The engine holds tokens the journal does not know about.
			log.Error("reconciliation defect: engine buy committed without trade",
				"outcome", req.OutcomeIndex, "amount", amount.String(), "err", err)
			return nil, &domain.SettlementError{Op: "PlaceBet", UserID: req.UserID, MarketID: req.MarketID, Err: err}
		}
		return nil, s.settlementErr(log, "PlaceBet", req.UserID, req.MarketID, err)
	}

	// ── 5. Post-commit, best-effort ──────────────────────────────────────────
	postCtx, postCancel := detached(ctx, s.cfg.SideEffectTimeout)
	defer postCancel()

	s.recordStake(postCtx, log, req.UserID, req.Stake, balance)

	newBalance := balance.Sub(req.Stake)
	if scaled, err := s.ledger.BalanceOf(postCtx, account); err != nil {
		log.Warn("post-trade balance unavailable, using estimate", "err", err)
	} else {
		newBalance = domain.FromScaled(scaled)
	}

	s.publish(postCtx, events.BetPlaced{Market: market, Trade: trade, UserID: req.UserID, Balance: newBalance})

	log.Info("bet placed", "trade_id", trade.ID, "outcome", trade.OutcomeIndex,
		"stake", trade.InvestmentAmount.String(), "tokens", trade.OutcomeTokens.String())
	return &domain.PlaceBetResult{Trade: trade, Balance: newBalance}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Max-stake streak
// ──────────────────────────────────────────────────────────────────────────────

// recordStake tracks bets that stake the whole balance. After StreakLength of
// them in a row the user is minted StreakReward and the streak restarts.
//
// The streak is claimed before the mint, so concurrent bets that push it past
// StreakLength award it once.
func (s *SettlementService) recordStake(ctx context.Context, log *slog.Logger, userID uuid.UUID, stake, balance decimal.Decimal) {
	streak, err := s.users.RecordStake(ctx, userID, domain.IsMaxStake(stake, balance))
	if err != nil {
		log.Warn("streak update failed", "err", err)
		return
	}
	if streak < s.cfg.StreakLength || !s.cfg.StreakReward.IsPositive() {
		return
	}

	claimed, err := s.users.ClaimStreakAward(ctx, userID, s.cfg.StreakLength)
	if err != nil {
		log.Warn("streak claim failed", "streak", streak, "err", err)
		return
	}
	if !claimed {
		return
	}
	if err := s.ledger.Mint(ctx, domain.UserAccount(userID), domain.ToScaled(s.cfg.StreakReward)); err != nil {
		log.Error("streak award claimed but not minted", "streak", streak,
			"award", s.cfg.StreakReward.String(), "err", err)
		return
	}
	s.publish(ctx, events.UserAward{UserID: userID, Award: s.cfg.StreakReward, Streak: streak})
	log.Info("max-stake streak awarded", "streak", streak, "award", s.cfg.StreakReward.String())
}

// ──────────────────────────────────────────────────────────────────────────────
// Error mapping
// ──────────────────────────────────────────────────────────────────────────────

// settlementErr passes caller-visible domain errors through and wraps
// everything else into a SettlementError, logging the cause.
func (s *SettlementService) settlementErr(log *slog.Logger, op string, userID, marketID uuid.UUID, err error) error {
	if domain.KindOf(err) != domain.KindInternal {
		return err
	}
	var se *domain.SettlementError
	if errors.As(err, &se) {
		return err
	}
	log.Error("settlement failed", "err", err)
	return &domain.SettlementError{Op: op, UserID: userID, MarketID: marketID, Err: err}
}
