package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/domain"
	"github.com/wallfair/settlement/internal/events"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketService
// ──────────────────────────────────────────────────────────────────────────────

// MarketService handles the parts of the market lifecycle that are not
// settlement: creation, lookup, the close sweep and quote history.
type MarketService struct {
	markets   MarketStore
	quotes    QuoteStore
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewMarketService creates a MarketService.
func NewMarketService(markets MarketStore, quotes QuoteStore, publisher events.Publisher, logger *slog.Logger) *MarketService {
	return &MarketService{
		markets:   markets,
		quotes:    quotes,
		publisher: publisher,
		logger:    logger.With("component", "market"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new active market and announces it with NEW_BET.
func (s *MarketService) Create(ctx context.Context, req domain.CreateMarketRequest) (*domain.Market, error) {
	now := s.now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	m := &domain.Market{
		ID:        uuid.New(),
		Title:     req.Title,
		Outcomes:  req.Outcomes,
		Status:    domain.StatusActive,
		Published: req.Published,
		EndDate:   req.EndDate.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.markets.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("market_service.Create: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.NewBet{Market: m}); err != nil {
		s.logger.Warn("publish failed", "event", events.KindNewBet, "market_id", m.ID, "err", err)
	}
	s.logger.Info("market created", "market_id", m.ID, "outcomes", len(m.Outcomes), "end_date", m.EndDate)
	return m, nil
}

// Get returns one market.
func (s *MarketService) Get(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	return s.markets.GetByID(ctx, id)
}

// CloseExpired moves every active market past its end date to closed.
// Returns the number of markets closed.
func (s *MarketService) CloseExpired(ctx context.Context) (int, error) {
	ids, err := s.markets.CloseExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("market_service.CloseExpired: %w", err)
	}
	for _, id := range ids {
		s.logger.Info("market closed", "market_id", id)
	}
	return len(ids), nil
}

// Quotes returns a market's price history since the given instant.
func (s *MarketService) Quotes(ctx context.Context, marketID uuid.UUID, since time.Time) ([]domain.QuoteSample, error) {
	if _, err := s.markets.GetByID(ctx, marketID); err != nil {
		return nil, err
	}
	samples, err := s.quotes.ListByMarket(ctx, marketID, since)
	if err != nil {
		return nil, fmt.Errorf("market_service.Quotes: %w", err)
	}
	return samples, nil
}
