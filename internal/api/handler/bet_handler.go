package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wallfair/settlement/internal/api/middleware"
	"github.com/wallfair/settlement/internal/domain"
)

// BetPlacer places bets. Implemented by service.SettlementService.
type BetPlacer interface {
	PlaceBet(ctx context.Context, req domain.PlaceBetRequest) (*domain.PlaceBetResult, error)
}

// PositionReader reads a user's trade journal. Implemented by
// service.TradeService.
type PositionReader interface {
	OpenPositions(ctx context.Context, userID uuid.UUID) ([]domain.OpenPosition, error)
	History(ctx context.Context, userID uuid.UUID) ([]domain.HistoryEntry, error)
}

// BetHandler serves bet placement and position endpoints.
type BetHandler struct {
	bets      BetPlacer
	positions PositionReader
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetPlacer, positions PositionReader) *BetHandler {
	return &BetHandler{bets: bets, positions: positions}
}

// PlaceBet godoc
// POST /api/bets [JWT]
// Body: {"market_id":"uuid","outcome_index":0,"amount":"100","min_outcome_tokens":"1"}
func (h *BetHandler) PlaceBet(c *gin.Context) {
	var body struct {
		MarketID         string `json:"market_id"          binding:"required"`
		OutcomeIndex     *int   `json:"outcome_index"      binding:"required"`
		Amount           string `json:"amount"             binding:"required"`
		MinOutcomeTokens string `json:"min_outcome_tokens"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	marketID, err := uuid.Parse(body.MarketID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_MARKET_ID", "invalid market_id format")
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_STAKE", "amount must be a decimal string")
		return
	}
	minTokens := decimal.Zero
	if body.MinOutcomeTokens != "" {
		if minTokens, err = decimal.NewFromString(body.MinOutcomeTokens); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "min_outcome_tokens must be a decimal string")
			return
		}
	}

	res, err := h.bets.PlaceBet(c.Request.Context(), domain.PlaceBetRequest{
		UserID:           middleware.GetUserID(c),
		MarketID:         marketID,
		Stake:            amount,
		OutcomeIndex:     *body.OutcomeIndex,
		MinOutcomeTokens: minTokens,
	})
	if err != nil {
		respondDomainError(c, err, "could not place bet")
		return
	}
	respondSuccess(c, http.StatusCreated, res)
}

// OpenBets godoc
// GET /api/bets/open [JWT]
func (h *BetHandler) OpenBets(c *gin.Context) {
	positions, err := h.positions.OpenPositions(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err, "could not fetch open bets")
		return
	}
	respondSuccess(c, http.StatusOK, positions)
}

// History godoc
// GET /api/bets/history [JWT]
func (h *BetHandler) History(c *gin.Context) {
	entries, err := h.positions.History(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err, "could not fetch bet history")
		return
	}
	respondSuccess(c, http.StatusOK, entries)
}
