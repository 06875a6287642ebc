package handler

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wallfair/settlement/internal/domain"
)

// MarketLister lists markets by status. Implemented by
// repository.MarketRepository.
type MarketLister interface {
	ListByStatus(ctx context.Context, statuses ...domain.MarketStatus) ([]*domain.Market, error)
}

// MarketCloser runs the close sweep. Implemented by service.MarketService.
type MarketCloser interface {
	CloseExpired(ctx context.Context) (int, error)
}

// Reconciler compares the trade journal with the pricing engine.
// Implemented by service.Reconciler.
type Reconciler interface {
	CheckMarket(ctx context.Context, marketID uuid.UUID) (*domain.ReconciliationReport, error)
	CheckAll(ctx context.Context) ([]*domain.ReconciliationReport, error)
}

var allStatuses = []domain.MarketStatus{
	domain.StatusActive, domain.StatusClosed, domain.StatusResolved, domain.StatusCanceled,
}

// OpsHandler serves the operations endpoints.
type OpsHandler struct {
	markets    MarketLister
	closer     MarketCloser
	reconciler Reconciler
	now        func() time.Time
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(markets MarketLister, closer MarketCloser, reconciler Reconciler) *OpsHandler {
	return &OpsHandler{
		markets:    markets,
		closer:     closer,
		reconciler: reconciler,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *OpsHandler) Dashboard(c *gin.Context) {
	markets, err := h.markets.ListByStatus(c.Request.Context(), allStatuses...)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list markets")
		return
	}

	counts := make(map[domain.MarketStatus]int, len(allStatuses))
	for _, s := range allStatuses {
		counts[s] = 0
	}
	overdue := 0
	now := h.now()
	for _, m := range markets {
		counts[m.Status]++
		if m.Status == domain.StatusActive && !now.Before(m.EndDate) {
			overdue++
		}
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"markets":        counts,
		"total":          len(markets),
		"overdue_active": overdue,
	})
}

// ListMarkets godoc
// GET /admin/markets?status=active,closed&page=1&limit=50
func (h *OpsHandler) ListMarkets(c *gin.Context) {
	statuses := allStatuses
	if raw := c.Query("status"); raw != "" {
		statuses = nil
		for _, s := range strings.Split(raw, ",") {
			st := domain.MarketStatus(strings.TrimSpace(s))
			if !slices.Contains(allStatuses, st) {
				respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "unknown status "+string(st))
				return
			}
			statuses = append(statuses, st)
		}
	}

	markets, err := h.markets.ListByStatus(c.Request.Context(), statuses...)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list markets")
		return
	}
	respondPage(c, markets, pageFromQuery(c))
}

// CloseExpired godoc
// POST /admin/markets/close-expired
func (h *OpsHandler) CloseExpired(c *gin.Context) {
	n, err := h.closer.CloseExpired(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "close sweep failed")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"closed": n})
}

// ReconcileAll godoc
// GET /admin/reconcile
func (h *OpsHandler) ReconcileAll(c *gin.Context) {
	reports, err := h.reconciler.CheckAll(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "reconciliation failed")
		return
	}
	defects, mismatches := 0, 0
	for _, r := range reports {
		for _, d := range r.Discrepancies {
			if d.IsDefect() {
				defects++
			} else {
				mismatches++
			}
		}
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"reports":    reports,
		"defects":    defects,
		"mismatches": mismatches,
	})
}

// ReconcileMarket godoc
// GET /admin/markets/:id/reconcile
func (h *OpsHandler) ReconcileMarket(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	report, err := h.reconciler.CheckMarket(c.Request.Context(), id)
	switch {
	case err == nil:
		respondSuccess(c, http.StatusOK, report)
	case domain.KindOf(err) == domain.KindNotFound:
		respondError(c, http.StatusNotFound, "ERR_MARKET_NOT_FOUND", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "reconciliation failed")
	}
}
