package service

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallfair/settlement/internal/amm"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Dependencies
// ──────────────────────────────────────────────────────────────────────────────

// TxRunner opens local transactions. Implemented by repository.Store.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// MarketStore is the non-transactional side of the market repository.
type MarketStore interface {
	Create(ctx context.Context, m *domain.Market) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error)
	ListByStatus(ctx context.Context, statuses ...domain.MarketStatus) ([]*domain.Market, error)
	CloseExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// TradeStore serves the trade journal aggregations.
type TradeStore interface {
	OpenPositions(ctx context.Context, userID uuid.UUID) ([]domain.OpenPosition, error)
	TradeHistory(ctx context.Context, userID uuid.UUID) ([]domain.HistoryEntry, error)
	ActiveHoldings(ctx context.Context, marketID uuid.UUID) ([]domain.TokenHolding, error)
}

// UserStore reads users and updates their statistics.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	IncreaseAmountWon(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	RecordStake(ctx context.Context, id uuid.UUID, maxStake bool) (int, error)
	ClaimStreakAward(ctx context.Context, id uuid.UUID, length int) (bool, error)
}

// QuoteStore persists price samples.
type QuoteStore interface {
	Insert(ctx context.Context, samples []domain.QuoteSample) (int64, error)
	ListByMarket(ctx context.Context, marketID uuid.UUID, since time.Time) ([]domain.QuoteSample, error)
}

// PricingEngine is the external AMM. Implemented by amm.Client.
type PricingEngine interface {
	Buy(ctx context.Context, req amm.BuyRequest) (*amm.BuyResult, error)
	ResolveAndPayout(ctx context.Context, marketID uuid.UUID, reporter string, outcomeIndex int) ([]amm.Holding, error)
	Refund(ctx context.Context, marketID uuid.UUID) error
	InvestorsOfOutcome(ctx context.Context, marketID uuid.UUID, outcomeIndex int) ([]amm.Holding, error)
	UserInteractions(ctx context.Context, marketID uuid.UUID) ([]amm.Interaction, error)
	QuoteBuy(ctx context.Context, marketID uuid.UUID, amount *big.Int, outcomeIndex int) (*big.Int, error)
}

// Ledger is the external token ledger. Implemented by ledger.Client.
type Ledger interface {
	Mint(ctx context.Context, account domain.Account, amount *big.Int) error
	BalanceOf(ctx context.Context, account domain.Account) (*big.Int, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// userOwner parses an engine owner into a user id. System accounts and
// owners that are not user ids report false.
func userOwner(owner string) (uuid.UUID, bool) {
	if domain.IsSystemAccount(owner) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// investedByUser nets each buyer's interactions: buys add, sells subtract.
func investedByUser(interactions []amm.Interaction) map[string]*big.Int {
	out := make(map[string]*big.Int)
	for _, it := range interactions {
		if it.InvestmentAmount == nil {
			continue
		}
		sum, ok := out[it.Buyer]
		if !ok {
			sum = new(big.Int)
			out[it.Buyer] = sum
		}
		switch it.Direction {
		case amm.DirectionBuy:
			sum.Add(sum, it.InvestmentAmount)
		case amm.DirectionSell:
			sum.Sub(sum, it.InvestmentAmount)
		}
	}
	return out
}

// detached returns a context that survives the caller's cancellation but is
// still bounded by timeout.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
