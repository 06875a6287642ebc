package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/wallfair/settlement/internal/domain"
)

// TradeRepository handles all database operations for the trade journal.
type TradeRepository struct {
	db *sqlx.DB
}

// NewTradeRepository creates a new TradeRepository.
func NewTradeRepository(db *sqlx.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Insert journals a buy inside an existing transaction.
func (r *TradeRepository) Insert(ctx context.Context, tx *sqlx.Tx, t *domain.Trade) error {
	query := `
		INSERT INTO trades
			(id, user_id, market_id, outcome_index, investment_amount, outcome_tokens, status, created_at, updated_at)
		VALUES
			(:id, :user_id, :market_id, :outcome_index, :investment_amount, :outcome_tokens, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("trade_repo.Insert: %w", err)
	}
	return nil
}

// CloseTrades moves a user's active trades on one market outcome to status.
// Trades that already left active are never touched.
func (r *TradeRepository) CloseTrades(ctx context.Context, tx *sqlx.Tx, userID, marketID uuid.UUID, outcomeIndex int, status domain.TradeStatus) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE trades
		SET status     = $1,
		    updated_at = now()
		WHERE user_id       = $2
		  AND market_id     = $3
		  AND outcome_index = $4
		  AND status        = 'active'`,
		string(status), userID, marketID, outcomeIndex)
	if err != nil {
		return 0, fmt.Errorf("trade_repo.CloseTrades: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Aggregations
// ──────────────────────────────────────────────────────────────────────────────

const outcomeNameExpr = `
	COALESCE((SELECT o->>'name'
	          FROM jsonb_array_elements(m.outcomes) o
	          WHERE (o->>'index')::int = t.outcome_index), '')`

// OpenPositions returns a user's active trades grouped by market and outcome.
func (r *TradeRepository) OpenPositions(ctx context.Context, userID uuid.UUID) ([]domain.OpenPosition, error) {
	positions := []domain.OpenPosition{}
	err := r.db.SelectContext(ctx, &positions, `
		SELECT t.market_id,
		       m.title                  AS market_title,
		       t.outcome_index,
		       `+outcomeNameExpr+`      AS outcome_name,
		       SUM(t.investment_amount) AS investment_amount,
		       SUM(t.outcome_tokens)    AS outcome_tokens,
		       MAX(t.created_at)        AS last_trade_at
		FROM trades t
		JOIN markets m ON m.id = t.market_id
		WHERE t.user_id = $1 AND t.status = 'active'
		GROUP BY t.market_id, m.title, m.outcomes, t.outcome_index
		ORDER BY last_trade_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("trade_repo.OpenPositions: %w", err)
	}
	return positions, nil
}

// TradeHistory returns a user's settled trades grouped by market, outcome and
// status, with the market's final outcome.
func (r *TradeRepository) TradeHistory(ctx context.Context, userID uuid.UUID) ([]domain.HistoryEntry, error) {
	statuses := make([]string, len(domain.HistoryStatuses))
	for i, s := range domain.HistoryStatuses {
		statuses[i] = string(s)
	}
	entries := []domain.HistoryEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT t.market_id,
		       m.title                  AS market_title,
		       t.outcome_index,
		       t.status,
		       m.final_outcome,
		       SUM(t.investment_amount) AS investment_amount,
		       SUM(t.outcome_tokens)    AS outcome_tokens,
		       MAX(t.created_at)        AS last_trade_at
		FROM trades t
		JOIN markets m ON m.id = t.market_id
		WHERE t.user_id = $1 AND t.status = ANY($2)
		GROUP BY t.market_id, m.title, m.final_outcome, t.outcome_index, t.status
		ORDER BY last_trade_at DESC`, userID, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("trade_repo.TradeHistory: %w", err)
	}
	return entries, nil
}

// ActiveHoldings sums active outcome tokens per user and outcome for one market.
func (r *TradeRepository) ActiveHoldings(ctx context.Context, marketID uuid.UUID) ([]domain.TokenHolding, error) {
	holdings := []domain.TokenHolding{}
	err := r.db.SelectContext(ctx, &holdings, `
		SELECT user_id, outcome_index, SUM(outcome_tokens) AS outcome_tokens
		FROM trades
		WHERE market_id = $1 AND status = 'active'
		GROUP BY user_id, outcome_index`, marketID)
	if err != nil {
		return nil, fmt.Errorf("trade_repo.ActiveHoldings: %w", err)
	}
	return holdings, nil
}

// CloseOpenTrades moves every remaining active trade of a market to status and
// returns the distinct owners touched.
func (r *TradeRepository) CloseOpenTrades(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, status domain.TradeStatus) ([]uuid.UUID, error) {
	var owners []uuid.UUID
	err := tx.SelectContext(ctx, &owners, `
		WITH closed AS (
			UPDATE trades
			SET status     = $1,
			    updated_at = now()
			WHERE market_id = $2 AND status = 'active'
			RETURNING user_id
		)
		SELECT DISTINCT user_id FROM closed`,
		string(status), marketID)
	if err != nil {
		return nil, fmt.Errorf("trade_repo.CloseOpenTrades: %w", err)
	}
	return owners, nil
}
