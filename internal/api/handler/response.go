package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wallfair/settlement/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Domain error mapping
// ──────────────────────────────────────────────────────────────────────────────

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrInvalidStake, "ERR_INVALID_STAKE"},
	{domain.ErrInvalidOutcome, "ERR_INVALID_OUTCOME"},
	{domain.ErrInvalidMarket, "ERR_INVALID_MARKET"},
	{domain.ErrMarketNotTradable, "ERR_MARKET_NOT_TRADABLE"},
	{domain.ErrInsufficientBalance, "ERR_INSUFFICIENT_BALANCE"},
	{domain.ErrInsufficientOutcomeTokens, "ERR_SLIPPAGE"},
	{domain.ErrMarketNotFound, "ERR_MARKET_NOT_FOUND"},
	{domain.ErrUserNotFound, "ERR_USER_NOT_FOUND"},
	{domain.ErrInvalidMarketState, "ERR_INVALID_MARKET_STATE"},
	{domain.ErrUnauthorized, "ERR_UNAUTHORIZED"},
	{domain.ErrTokenInvalid, "ERR_TOKEN_INVALID"},
	{domain.ErrForbidden, "ERR_FORBIDDEN"},
}

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:        http.StatusBadRequest,
	domain.KindNotTradable:       http.StatusConflict,
	domain.KindInsufficientFunds: http.StatusPaymentRequired,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindForbidden:         http.StatusForbidden,
	domain.KindConflict:          http.StatusConflict,
}

// respondDomainError maps err onto an HTTP status through its kind. Internal
// errors never expose their cause.
func respondDomainError(c *gin.Context, err error, internalMsg string) {
	kind := domain.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", internalMsg)
		return
	}
	if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrTokenInvalid) {
		status = http.StatusUnauthorized
	}
	code := "ERR_" + string(kind)
	for _, row := range errorCodes {
		if errors.Is(err, row.err) {
			code = row.code
			break
		}
	}
	respondError(c, status, code, err.Error())
}
