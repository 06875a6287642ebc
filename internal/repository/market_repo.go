package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/wallfair/settlement/internal/domain"
)

// MarketRepository handles all database operations for Markets.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market row.
func (r *MarketRepository) Create(ctx context.Context, m *domain.Market) error {
	query := `
		INSERT INTO markets
			(id, title, outcomes, status, published, end_date, created_at, updated_at)
		VALUES
			(:id, :title, :outcomes, :status, :published, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("market_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a market by its primary key.
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	return &m, nil
}

// ListByStatus returns markets in any of the given statuses, oldest end date first.
func (r *MarketRepository) ListByStatus(ctx context.Context, statuses ...domain.MarketStatus) ([]*domain.Market, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	var markets []*domain.Market
	err := r.db.SelectContext(ctx, &markets,
		`SELECT * FROM markets WHERE status = ANY($1) ORDER BY end_date ASC`,
		pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("market_repo.ListByStatus: %w", err)
	}
	return markets, nil
}

// CloseExpired moves every active market whose end date has passed to closed
// and returns the ids that changed.
func (r *MarketRepository) CloseExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE markets
		SET status = 'closed', updated_at = now()
		WHERE status = 'active' AND end_date <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("market_repo.CloseExpired: %w", err)
	}
	return ids, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transactional operations
// ──────────────────────────────────────────────────────────────────────────────

// LockTradable re-reads the market under a shared row lock and checks that it
// still accepts buys. The lock blocks a concurrent resolve/cancel until the
// buying transaction ends.
func (r *MarketRepository) LockTradable(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, now time.Time) (*domain.Market, error) {
	var m domain.Market
	err := tx.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1 FOR SHARE`, marketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.LockTradable: %w", err)
	}
	if !m.IsTradable(now) {
		return nil, domain.ErrMarketNotTradable
	}
	return &m, nil
}

// MarkResolved sets the final outcome and evidence. Only a market still in
// active or closed is touched; anything else yields ErrInvalidMarketState.
func (r *MarketRepository) MarkResolved(ctx context.Context, tx *sqlx.Tx, req domain.ResolveRequest, at time.Time) (*domain.Market, error) {
	var m domain.Market
	err := tx.GetContext(ctx, &m, `
		UPDATE markets
		SET status               = 'resolved',
		    final_outcome        = $1,
		    end_date             = $2,
		    evidence_actual      = $3,
		    evidence_description = $4,
		    updated_at           = now()
		WHERE id = $5 AND status IN ('active','closed')
		RETURNING *`,
		req.OutcomeIndex, at, req.EvidenceActual, req.EvidenceDescription, req.MarketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidMarketState
		}
		return nil, fmt.Errorf("market_repo.MarkResolved: %w", err)
	}
	return &m, nil
}

// MarkCanceled voids the market with a reason, under the same guard as MarkResolved.
func (r *MarketRepository) MarkCanceled(ctx context.Context, tx *sqlx.Tx, req domain.CancelRequest, at time.Time) (*domain.Market, error) {
	var m domain.Market
	err := tx.GetContext(ctx, &m, `
		UPDATE markets
		SET status                 = 'canceled',
		    reason_of_cancellation = $1,
		    end_date               = $2,
		    updated_at             = now()
		WHERE id = $3 AND status IN ('active','closed')
		RETURNING *`,
		req.Reason, at, req.MarketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidMarketState
		}
		return nil, fmt.Errorf("market_repo.MarkCanceled: %w", err)
	}
	return &m, nil
}
