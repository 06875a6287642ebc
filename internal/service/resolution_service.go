package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/events"
	"github.com/wallfair/settlement/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Resolve
// ──────────────────────────────────────────────────────────────────────────────

// Resolve records the final outcome and settles every open position.
//
// The resolution and the trade statuses commit together. The engine payout
// runs afterwards; when it fails the resolved market is still returned,
// together with an error matching domain.ErrPayoutComputation.
func (s *SettlementService) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Market, error) {
	log := s.logger.With("op", "Resolve", "market_id", req.MarketID, "outcome", req.OutcomeIndex)

	market, err := s.markets.GetByID(ctx, req.MarketID)
	if err != nil {
		return nil, s.settlementErr(log, "Resolve", uuid.Nil, req.MarketID, err)
	}
	if !market.Status.CanSettle() {
		return nil, domain.ErrInvalidMarketState
	}
	if !market.ValidOutcome(req.OutcomeIndex) {
		return nil, domain.ErrInvalidOutcome
	}

	// ── 1. Local transition + trade settlement ───────────────────────────────
	var resolved *domain.Market
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		m, err := tx.MarkResolved(ctx, req, s.now())
		if err != nil {
			return err
		}
		resolved = m
		return s.clearOpenBets(ctx, tx, m)
	})
	if err != nil {
		return nil, s.settlementErr(log, "Resolve", uuid.Nil, req.MarketID, err)
	}
	log.Info("market resolved")

	// ── 2. Post-commit: notify, then pay out ─────────────────────────────────
	postCtx, cancel := detached(ctx, payoutTimeout)
	defer cancel()

	s.publish(postCtx, events.BetResolved{Market: resolved, Reporter: req.Reporter})

	payouts, err := s.engine.ResolveAndPayout(postCtx, resolved.ID, req.Reporter, req.OutcomeIndex)
	if err != nil {
		return resolved, s.payoutErr(log, resolved.ID, err)
	}
	interactions, err := s.engine.UserInteractions(postCtx, resolved.ID)
	if err != nil {
		return resolved, s.payoutErr(log, resolved.ID, err)
	}
	invested := investedByUser(interactions)

	for _, p := range payouts {
		userID, ok := userOwner(p.Owner)
		if !ok {
			continue
		}
		winToken := domain.FromScaled(p.Balance)
		if err := s.users.IncreaseAmountWon(postCtx, userID, winToken); err != nil {
			log.Warn("amount won update failed", "user_id", userID, "win_token", winToken.String(), "err", err)
		}
		s.publish(postCtx, events.UserReward{
			UserID:   userID,
			MarketID: resolved.ID,
			WinToken: winToken,
			Invested: domain.FromScaled(invested[p.Owner]),
		})
	}
	log.Info("payout reported", "winners", len(payouts))
	return resolved, nil
}

func (s *SettlementService) payoutErr(log *slog.Logger, marketID uuid.UUID, err error) error {
	log.Error("payout computation failed; market stays resolved", "err", err)
	return &domain.SettlementError{Op: "Resolve", MarketID: marketID, Kind: domain.ErrPayoutComputation, Err: err}
}

// clearOpenBets closes every position the engine lists for the market:
// holders of the winning outcome become rewarded, everyone else closed.
// It only reads from the engine.
func (s *SettlementService) clearOpenBets(ctx context.Context, tx repository.Tx, market *domain.Market) error {
	for _, outcome := range market.Outcomes {
		investors, err := s.engine.InvestorsOfOutcome(ctx, market.ID, outcome.Index)
		if err != nil {
			return fmt.Errorf("clearOpenBets: investors of %d: %w", outcome.Index, err)
		}
		status := domain.SettledStatus(market.IsWinning(outcome.Index))
		for _, inv := range investors {
			userID, ok := userOwner(inv.Owner)
			if !ok {
				continue
			}
			if _, err := tx.CloseTrades(ctx, userID, market.ID, outcome.Index, status); err != nil {
				return fmt.Errorf("clearOpenBets: %w", err)
			}
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Cancel
// ──────────────────────────────────────────────────────────────────────────────

// Cancel voids a market and refunds every position.
//
// Inside one transaction: the guarded status change, the trade closures and
// finally the engine refund, so a failed refund leaves the market cancelable.
// The transaction runs on its own context: once the engine has refunded, the
// local commit must not be lost to caller cancellation.
func (s *SettlementService) Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Market, error) {
	log := s.logger.With("op", "Cancel", "market_id", req.MarketID)

	market, err := s.markets.GetByID(ctx, req.MarketID)
	if err != nil {
		return nil, s.settlementErr(log, "Cancel", uuid.Nil, req.MarketID, err)
	}
	if !market.Status.CanSettle() {
		return nil, domain.ErrInvalidMarketState
	}

	var (
		canceled *domain.Market
		userIDs  []uuid.UUID
	)
	txCtx, txCancel := detached(ctx, localWriteTimeout)
	defer txCancel()

	err = s.store.WithTransaction(txCtx, func(ctx context.Context, tx repository.Tx) error {
		m, err := tx.MarkCanceled(ctx, req, s.now())
		if err != nil {
			return err
		}
		canceled = m

		if userIDs, err = s.refundUserHistory(ctx, tx, m); err != nil {
			return err
		}
		if err := s.engine.Refund(ctx, m.ID); err != nil {
			return fmt.Errorf("refund: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.settlementErr(log, "Cancel", uuid.Nil, req.MarketID, err)
	}
	log.Info("market canceled", "users", len(userIDs))

	postCtx, cancel := detached(ctx, s.cfg.SideEffectTimeout)
	defer cancel()

	s.publish(postCtx, events.BetCanceled{Market: canceled, UserIDs: userIDs})
	for _, id := range userIDs {
		s.publish(postCtx, events.UserBetCanceled{
			UserID:   id,
			MarketID: canceled.ID,
			Title:    canceled.Title,
			Reason:   req.Reason,
		})
	}
	return canceled, nil
}

// refundUserHistory closes every position of a voided market and returns the
// distinct affected users, ordered. Positions are enumerated through the
// engine; any active trade the engine did not list is closed as well and
// logged, so no trade stays active.
func (s *SettlementService) refundUserHistory(ctx context.Context, tx repository.Tx, market *domain.Market) ([]uuid.UUID, error) {
	affected := make(map[uuid.UUID]bool)
	for _, outcome := range market.Outcomes {
		investors, err := s.engine.InvestorsOfOutcome(ctx, market.ID, outcome.Index)
		if err != nil {
			return nil, fmt.Errorf("refundUserHistory: investors of %d: %w", outcome.Index, err)
		}
		for _, inv := range investors {
			userID, ok := userOwner(inv.Owner)
			if !ok {
				continue
			}
			if _, err := tx.CloseTrades(ctx, userID, market.ID, outcome.Index, domain.TradeStatusClosed); err != nil {
				return nil, fmt.Errorf("refundUserHistory: %w", err)
			}
			affected[userID] = true
		}
	}

	leftover, err := tx.CloseOpenTrades(ctx, market.ID, domain.TradeStatusClosed)
	if err != nil {
		return nil, fmt.Errorf("refundUserHistory: %w", err)
	}
	if len(leftover) > 0 {
		s.logger.Warn("closed trades the engine did not list", "market_id", market.ID, "users", len(leftover))
	}
	for _, id := range leftover {
		affected[id] = true
	}

	out := make([]uuid.UUID, 0, len(affected))
	for id := range affected {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
