package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/domain"
)

// TradeService answers position queries from the trade journal.
type TradeService struct {
	trades TradeStore
}

// NewTradeService creates a TradeService.
func NewTradeService(trades TradeStore) *TradeService {
	return &TradeService{trades: trades}
}

// OpenPositions returns the user's active positions; never nil.
func (s *TradeService) OpenPositions(ctx context.Context, userID uuid.UUID) ([]domain.OpenPosition, error) {
	positions, err := s.trades.OpenPositions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trade_service.OpenPositions: %w", err)
	}
	if positions == nil {
		positions = []domain.OpenPosition{}
	}
	return positions, nil
}

// History returns the user's settled positions; never nil.
func (s *TradeService) History(ctx context.Context, userID uuid.UUID) ([]domain.HistoryEntry, error) {
	entries, err := s.trades.TradeHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("trade_service.History: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}
