package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallfair/settlement/internal/domain"
)

// Reconciler checks that the trade journal agrees with the pricing engine:
// for every (user, outcome) of a market, the summed active outcome tokens
// must equal the engine's holding. It only reads and reports.
type Reconciler struct {
	markets MarketStore
	trades  TradeStore
	engine  PricingEngine
	logger  *slog.Logger
	now     func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(markets MarketStore, trades TradeStore, engine PricingEngine, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		markets: markets,
		trades:  trades,
		engine:  engine,
		logger:  logger.With("component", "reconciler"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type holdingKey struct {
	owner   string
	outcome int
}

// CheckMarket compares one market's journal with the engine.
func (r *Reconciler) CheckMarket(ctx context.Context, marketID uuid.UUID) (*domain.ReconciliationReport, error) {
	market, err := r.markets.GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}

	local := make(map[holdingKey]decimal.Decimal)
	holdings, err := r.trades.ActiveHoldings(ctx, market.ID)
	if err != nil {
		return nil, fmt.Errorf("reconciler.CheckMarket: %w", err)
	}
	for _, h := range holdings {
		local[holdingKey{h.UserID.String(), h.OutcomeIndex}] = h.OutcomeTokens
	}

	engine := make(map[holdingKey]decimal.Decimal)
	for _, outcome := range market.Outcomes {
		investors, err := r.engine.InvestorsOfOutcome(ctx, market.ID, outcome.Index)
		if err != nil {
			return nil, fmt.Errorf("reconciler.CheckMarket: investors of %d: %w", outcome.Index, err)
		}
		for _, inv := range investors {
			if _, ok := userOwner(inv.Owner); !ok {
				continue
			}
			engine[holdingKey{inv.Owner, outcome.Index}] = domain.FromScaled(inv.Balance)
		}
	}

	keys := make(map[holdingKey]struct{}, len(local)+len(engine))
	for k := range local {
		keys[k] = struct{}{}
	}
	for k := range engine {
		keys[k] = struct{}{}
	}

	report := &domain.ReconciliationReport{
		MarketID:      market.ID,
		CheckedAt:     r.now(),
		Discrepancies: []domain.Discrepancy{},
	}
	for k := range keys {
		l, e := local[k], engine[k]
		if l.IsZero() && e.IsZero() {
			continue
		}
		report.Pairs++
		if l.Equal(e) {
			continue
		}
		kind := domain.DiscrepancyEngineExceedsLocal
		if l.GreaterThan(e) {
			kind = domain.DiscrepancyLocalExceedsEngine
		}
		report.Discrepancies = append(report.Discrepancies, domain.Discrepancy{
			MarketID:     market.ID,
			UserID:       k.owner,
			OutcomeIndex: k.outcome,
			Local:        l,
			Engine:       e,
			Kind:         kind,
		})
	}
	sort.Slice(report.Discrepancies, func(i, j int) bool {
		a, b := report.Discrepancies[i], report.Discrepancies[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.OutcomeIndex < b.OutcomeIndex
	})

	for _, d := range report.Discrepancies {
		attrs := []any{
			"market_id", d.MarketID, "user_id", d.UserID, "outcome", d.OutcomeIndex,
			"local", d.Local.String(), "engine", d.Engine.String(), "kind", d.Kind,
		}
		if d.IsDefect() {
			r.logger.Error("reconciliation defect", attrs...)
		} else {
			r.logger.Warn("reconciliation mismatch", attrs...)
		}
	}
	return report, nil
}

// CheckAll reconciles every market that can still hold active trades.
// A market that fails to check is logged and skipped.
func (r *Reconciler) CheckAll(ctx context.Context) ([]*domain.ReconciliationReport, error) {
	markets, err := r.markets.ListByStatus(ctx, domain.StatusActive, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("reconciler.CheckAll: %w", err)
	}
	reports := make([]*domain.ReconciliationReport, 0, len(markets))
	for _, m := range markets {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		rep, err := r.CheckMarket(ctx, m.ID)
		if err != nil {
			r.logger.Warn("reconciliation check failed", "market_id", m.ID, "err", err)
			continue
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
