package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// TradeStatus represents the state of a journaled buy.
type TradeStatus string

const (
	TradeStatusActive   TradeStatus = "active"   // position still held
	TradeStatusClosed   TradeStatus = "closed"   // lost or refunded
	TradeStatusRewarded TradeStatus = "rewarded" // held the winning outcome
	TradeStatusSold     TradeStatus = "sold"     // exited through the engine
)

// HistoryStatuses are the terminal statuses listed in a user's trade history.
var HistoryStatuses = []TradeStatus{TradeStatusClosed, TradeStatusRewarded, TradeStatusSold}

// IsTerminal returns true for every status other than active.
func (s TradeStatus) IsTerminal() bool {
	return s != TradeStatusActive
}

// ──────────────────────────────────────────────────────────────────────────────
// Trade
// ──────────────────────────────────────────────────────────────────────────────

// Trade is one journaled buy. Rows are append-only; only Status moves, and
// only away from active.
type Trade struct {
	ID               uuid.UUID       `json:"id"                db:"id"`
	UserID           uuid.UUID       `json:"user_id"           db:"user_id"`
	MarketID         uuid.UUID       `json:"market_id"         db:"market_id"`
	OutcomeIndex     int             `json:"outcome_index"     db:"outcome_index"`
	InvestmentAmount decimal.Decimal `json:"investment_amount" db:"investment_amount"`
	OutcomeTokens    decimal.Decimal `json:"outcome_tokens"    db:"outcome_tokens"`
	Status           TradeStatus     `json:"status"            db:"status"`
	CreatedAt        time.Time       `json:"created_at"        db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"        db:"updated_at"`
}

// IsActive returns true while the trade is an open position.
func (t *Trade) IsActive() bool {
	return t.Status == TradeStatusActive
}

// SettledStatus returns the status a trade moves to when its market resolves.
func SettledStatus(winning bool) TradeStatus {
	if winning {
		return TradeStatusRewarded
	}
	return TradeStatusClosed
}

// ──────────────────────────────────────────────────────────────────────────────
// Aggregations
// ──────────────────────────────────────────────────────────────────────────────

// OpenPosition is the sum of a user's active trades on one market outcome.
type OpenPosition struct {
	MarketID         uuid.UUID       `json:"market_id"         db:"market_id"`
	MarketTitle      string          `json:"market_title"      db:"market_title"`
	OutcomeIndex     int             `json:"outcome_index"     db:"outcome_index"`
	OutcomeName      string          `json:"outcome_name"      db:"outcome_name"`
	InvestmentAmount decimal.Decimal `json:"investment_amount" db:"investment_amount"`
	OutcomeTokens    decimal.Decimal `json:"outcome_tokens"    db:"outcome_tokens"`
	LastTradeAt      time.Time       `json:"last_trade_at"     db:"last_trade_at"`
}

// HistoryEntry groups a user's settled trades by market, outcome and status.
type HistoryEntry struct {
	MarketID         uuid.UUID       `json:"market_id"         db:"market_id"`
	MarketTitle      string          `json:"market_title"      db:"market_title"`
	OutcomeIndex     int             `json:"outcome_index"     db:"outcome_index"`
	Status           TradeStatus     `json:"status"            db:"status"`
	FinalOutcome     *int            `json:"final_outcome"     db:"final_outcome"`
	InvestmentAmount decimal.Decimal `json:"investment_amount" db:"investment_amount"`
	OutcomeTokens    decimal.Decimal `json:"outcome_tokens"    db:"outcome_tokens"`
	LastTradeAt      time.Time       `json:"last_trade_at"     db:"last_trade_at"`
}

// TokenHolding is a user's summed active outcome tokens on one outcome, the
// local side of the reconciliation invariant.
type TokenHolding struct {
	UserID        uuid.UUID       `db:"user_id"`
	OutcomeIndex  int             `db:"outcome_index"`
	OutcomeTokens decimal.Decimal `db:"outcome_tokens"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Requests
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBetRequest is the input of a buy.
type PlaceBetRequest struct {
	UserID           uuid.UUID
	MarketID         uuid.UUID
	Stake            decimal.Decimal
	OutcomeIndex     int
	MinOutcomeTokens decimal.Decimal
}

// Validate checks the request fields that do not need the market.
func (r PlaceBetRequest) Validate() error {
	if !r.Stake.IsPositive() || !HasScalePrecision(r.Stake) {
		return ErrInvalidStake
	}
	if r.OutcomeIndex < 0 {
		return ErrInvalidOutcome
	}
	return nil
}

// PlaceBetResult is returned to the caller of a successful buy.
type PlaceBetResult struct {
	Trade   *Trade          `json:"trade"`
	Balance decimal.Decimal `json:"balance"`
}

// ──────────────────────────────────────────────────────────────────────────────
// System accounts
// ──────────────────────────────────────────────────────────────────────────────

// IsSystemAccount reports whether a pricing-engine owner is an internal
// account (the market's own pool or a namespaced account) rather than a user.
func IsSystemAccount(owner string) bool {
	return strings.HasPrefix(owner, "BET") || strings.Contains(owner, "_")
}
