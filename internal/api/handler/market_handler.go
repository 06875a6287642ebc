package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/api/middleware"
	"github.com/wallfair/settlement/internal/domain"
)

// defaultQuoteWindow is how far back GET /quotes looks without ?since=.
const defaultQuoteWindow = 24 * time.Hour

// MarketReader reads markets and their price history. Implemented by
// service.MarketService.
type MarketReader interface {
	Create(ctx context.Context, req domain.CreateMarketRequest) (*domain.Market, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Market, error)
	Quotes(ctx context.Context, marketID uuid.UUID, since time.Time) ([]domain.QuoteSample, error)
}

// Settler resolves and cancels markets. Implemented by
// service.SettlementService.
type Settler interface {
	Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Market, error)
	Cancel(ctx context.Context, req domain.CancelRequest) (*domain.Market, error)
}

// Checker reconciles one market. Implemented by service.Reconciler.
type Checker interface {
	CheckMarket(ctx context.Context, marketID uuid.UUID) (*domain.ReconciliationReport, error)
}

// MarketHandler serves market endpoints, public and admin.
type MarketHandler struct {
	markets    MarketReader
	settlement Settler
	checker    Checker
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketReader, settlement Settler, checker Checker) *MarketHandler {
	return &MarketHandler{markets: markets, settlement: settlement, checker: checker}
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	market, err := h.markets.Get(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not fetch market")
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Quotes godoc
// GET /api/markets/:id/quotes?since=RFC3339
func (h *MarketHandler) Quotes(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	since := time.Now().UTC().Add(-defaultQuoteWindow)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "since must be an RFC3339 timestamp")
			return
		}
		since = t
	}
	samples, err := h.markets.Quotes(c.Request.Context(), id, since)
	if err != nil {
		respondDomainError(c, err, "could not fetch quotes")
		return
	}
	respondSuccess(c, http.StatusOK, samples)
}

// Create godoc
// POST /api/admin/markets [JWT, admin]
// Body: {"title":"...","outcomes":["Yes","No"],"end_date":"RFC3339","published":true}
func (h *MarketHandler) Create(c *gin.Context) {
	var body struct {
		Title     string    `json:"title"     binding:"required"`
		Outcomes  []string  `json:"outcomes"  binding:"required"`
		EndDate   time.Time `json:"end_date"  binding:"required"`
		Published bool      `json:"published"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	outcomes := make(domain.Outcomes, len(body.Outcomes))
	for i, name := range body.Outcomes {
		outcomes[i] = domain.Outcome{Index: i, Name: name}
	}
	market, err := h.markets.Create(c.Request.Context(), domain.CreateMarketRequest{
		Title:     body.Title,
		Outcomes:  outcomes,
		EndDate:   body.EndDate,
		Published: body.Published,
	})
	if err != nil {
		respondDomainError(c, err, "could not create market")
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}

// Resolve godoc
// POST /api/admin/markets/:id/resolve [JWT, admin|reporter]
// Body: {"outcome_index":0,"evidence_actual":"...","evidence_description":"..."}
//
// A resolution whose payout could not be reported still answers 200 with
// payout_pending set; the market is resolved either way.
func (h *MarketHandler) Resolve(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	var body struct {
		OutcomeIndex        *int   `json:"outcome_index"        binding:"required"`
		EvidenceActual      string `json:"evidence_actual"`
		EvidenceDescription string `json:"evidence_description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	market, err := h.settlement.Resolve(c.Request.Context(), domain.ResolveRequest{
		MarketID:            id,
		OutcomeIndex:        *body.OutcomeIndex,
		EvidenceActual:      body.EvidenceActual,
		EvidenceDescription: body.EvidenceDescription,
		Reporter:            middleware.GetUserID(c).String(),
	})
	if err != nil && !(market != nil && errors.Is(err, domain.ErrPayoutComputation)) {
		respondDomainError(c, err, "could not resolve market")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market":         market,
		"payout_pending": err != nil,
	})
}

// Cancel godoc
// POST /api/admin/markets/:id/cancel [JWT, admin]
// Body: {"reason":"..."}
func (h *MarketHandler) Cancel(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	market, err := h.settlement.Cancel(c.Request.Context(), domain.CancelRequest{MarketID: id, Reason: body.Reason})
	if err != nil {
		respondDomainError(c, err, "could not cancel market")
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Reconcile godoc
// GET /api/admin/markets/:id/reconcile [JWT, admin]
func (h *MarketHandler) Reconcile(c *gin.Context) {
	id, ok := marketIDParam(c)
	if !ok {
		return
	}
	report, err := h.checker.CheckMarket(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not reconcile market")
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

func marketIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return uuid.Nil, false
	}
	return id, true
}
