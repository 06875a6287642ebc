package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/wallfair/settlement/internal/domain"
)

// QuoteRepository stores the price history of market outcomes.
type QuoteRepository struct {
	db *sqlx.DB
}

// NewQuoteRepository creates a new QuoteRepository.
func NewQuoteRepository(db *sqlx.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Insert appends samples. A sample whose (market, outcome, sampled_at) key
// already exists is ignored, so replays keep the first value. Returns the
// number of rows actually written.
func (r *QuoteRepository) Insert(ctx context.Context, samples []domain.QuoteSample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO quote_samples (market_id, outcome_index, sampled_at, quote)
		VALUES (:market_id, :outcome_index, :sampled_at, :quote)
		ON CONFLICT (market_id, outcome_index, sampled_at) DO NOTHING`, samples)
	if err != nil {
		return 0, fmt.Errorf("quote_repo.Insert: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ListByMarket returns a market's samples taken at or after since, oldest first.
func (r *QuoteRepository) ListByMarket(ctx context.Context, marketID uuid.UUID, since time.Time) ([]domain.QuoteSample, error) {
	samples := []domain.QuoteSample{}
	err := r.db.SelectContext(ctx, &samples, `
		SELECT market_id, outcome_index, sampled_at, quote
		FROM quote_samples
		WHERE market_id = $1 AND sampled_at >= $2
		ORDER BY sampled_at ASC, outcome_index ASC`, marketID, since)
	if err != nil {
		return nil, fmt.Errorf("quote_repo.ListByMarket: %w", err)
	}
	return samples, nil
}
