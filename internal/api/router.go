package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wallfair/settlement/internal/api/handler"
	"github.com/wallfair/settlement/internal/api/middleware"
	"github.com/wallfair/settlement/internal/config"
	"github.com/wallfair/settlement/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Tokens     middleware.TokenParser
	Bets       handler.BetPlacer
	Positions  handler.PositionReader
	Markets    handler.MarketReader
	Settlement handler.Settler
	Checker    handler.Checker
	Hub        *ws.Hub
	Cfg        *config.Config
	Logger     *slog.Logger
}

// SetupRouter creates the Gin engine with all routes and middleware.
// Background work owned by the router (rate-limit eviction) stops with ctx.
func SetupRouter(ctx context.Context, deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(requestLogger(deps.Logger))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(deps.Cfg))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	betH := handler.NewBetHandler(deps.Bets, deps.Positions)
	marketH := handler.NewMarketHandler(deps.Markets, deps.Settlement, deps.Checker)

	jwtMW := middleware.JWTMiddleware(deps.Tokens)
	betRL := middleware.RateLimitMiddleware(ctx, 30)

	api := r.Group("/api")
	{
		// ── Markets (public) ─────────────────────────────────────────────────
		markets := api.Group("/markets")
		{
			markets.GET("/:id", marketH.GetByID)
			markets.GET("/:id/quotes", marketH.Quotes)
		}

		// ── Bets (JWT) ───────────────────────────────────────────────────────
		bets := api.Group("/bets")
		bets.Use(jwtMW)
		{
			bets.POST("", betRL, betH.PlaceBet)
			bets.GET("/open", betH.OpenBets)
			bets.GET("/history", betH.History)
		}

		// ── Admin (JWT + role) ───────────────────────────────────────────────
		admin := api.Group("/admin/markets")
		admin.Use(jwtMW)
		{
			admin.POST("", middleware.AdminMiddleware(), marketH.Create)
			admin.POST("/:id/resolve", middleware.ResolverMiddleware(), marketH.Resolve)
			admin.POST("/:id/cancel", middleware.AdminMiddleware(), marketH.Cancel)
			admin.GET("/:id/reconcile", middleware.AdminMiddleware(), marketH.Reconcile)
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware allows every origin in development and only the configured
// ones in production.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
