package api

import (
	"net/http"
	"time"

	"github.com/evetabi/furbito/internal/api/handler"
	"github.com/evetabi/furbito/internal/api/middleware"
	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/ws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc    *service.AuthService
	BetSvc     *service.BetService
	EventSvc   *service.EventService
	AccountSvc *service.AccountService
	StatsSvc   *service.StatsService
	Hub        *ws.Hub
	Metrics    http.Handler // served on /metrics when set
	Cfg        *config.Config
	Log        *zap.Logger
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(log))
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc)
	eventH := handler.NewEventHandler(deps.EventSvc)
	betH := handler.NewBetHandler(deps.BetSvc)
	accountH := handler.NewAccountHandler(deps.AccountSvc)
	statsH := handler.NewStatsHandler(deps.StatsSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.Authenticate(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10) // 10 req/s per IP for auth endpoints
	betRL := middleware.RateLimitMiddleware(30)  // 30 req/s per user for bet endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Events (public) ──────────────────────────────────────────────────
		events := api.Group("/events")
		{
			events.GET("", eventH.ListEvents)
			events.GET("/:id", eventH.GetEvent)
			events.GET("/:id/winning-bets", betH.GetWinningBets)
		}

		// ── Public reads ─────────────────────────────────────────────────────
		api.GET("/users/ranking", accountH.GetRanking)
		api.GET("/bets/user/:id/public", betH.GetUserBets)

		if deps.StatsSvc != nil {
			players := api.Group("/players")
			{
				players.GET("/top-scorers", statsH.TopScorers)
				players.GET("/top-assisters", statsH.TopAssisters)
				players.GET("/teams", statsH.Teams)
				players.GET("/team/:team", statsH.Squad)
				players.GET("/:id/stats", statsH.PlayerStats)
			}
			league := api.Group("/league")
			{
				league.GET("/standings", statsH.Standings)
				league.GET("/results", statsH.Results)
			}
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			authed.GET("/me", userH.Me)

			bets := authed.Group("/bets")
			bets.Use(betRL)
			{
				bets.POST("", betH.PlaceBet)
				bets.GET("/my", betH.GetMyBets)
				bets.GET("/:id", betH.GetBetByID)
				bets.POST("/:id/cancel", betH.CancelBet)
			}

			account := authed.Group("/account")
			{
				account.GET("/balance", accountH.GetBalance)
				account.GET("/history", accountH.GetHistory)
				account.POST("/telegram", accountH.LinkTelegram)
			}

			rewards := authed.Group("/rewards")
			{
				rewards.GET("/spin-status", accountH.GetSpinStatus)
				rewards.POST("/spin", accountH.Spin)
			}
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

// RequestLogger logs one line per request through zap. Server errors log at
// error level, client errors at warn.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets CORS headers. Outside
// production all origins are allowed; in production only Server.AllowedOrigins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool)
	for _, o := range cfg.Server.Origins() {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
