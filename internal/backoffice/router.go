// Package backoffice serves the operations API: market overview, a manual
// close sweep and reconciliation reports. It runs as its own process next to
// the public API.
package backoffice

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wallfair/settlement/internal/api/middleware"
	"github.com/wallfair/settlement/internal/backoffice/handler"
	"github.com/wallfair/settlement/internal/config"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	Tokens     middleware.TokenParser
	Markets    handler.MarketLister
	Closer     handler.MarketCloser
	Reconciler handler.Reconciler
	Cfg        *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	opsH := handler.NewOpsHandler(deps.Markets, deps.Closer, deps.Reconciler)

	admin := r.Group("/admin")
	admin.Use(middleware.JWTMiddleware(deps.Tokens), middleware.AdminMiddleware())
	{
		admin.GET("/dashboard", opsH.Dashboard)
		admin.GET("/reconcile", opsH.ReconcileAll)

		m := admin.Group("/markets")
		{
			m.GET("", opsH.ListMarkets)
			m.POST("/close-expired", opsH.CloseExpired)
			m.GET("/:id/reconcile", opsH.ReconcileMarket)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// An empty allowlist lets everything through.
func ipWhitelistMiddleware(allowedIPs []string) gin.HandlerFunc {
	if len(allowedIPs) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		allowed[ip] = true
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "access denied: your IP is not whitelisted",
				"code":    "ERR_IP_DENIED",
			})
			return
		}
		c.Next()
	}
}
