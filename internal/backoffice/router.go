package backoffice

import (
	"github.com/evetabi/furbito/internal/api"
	"github.com/evetabi/furbito/internal/api/middleware"
	"github.com/evetabi/furbito/internal/backoffice/handler"
	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/service"
	"github.com/evetabi/furbito/internal/ws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc    *service.AuthService
	EventSvc   *service.EventService
	AccountSvc *service.AccountService
	SyncSvc    *service.SyncService // nil disables POST /admin/sync
	Hub        *ws.Hub
	Cfg        *config.Config
	Log        *zap.Logger
}

// SetupBackofficeRouter creates the admin Gin engine served on
// Server.BackofficePort.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(api.RequestLogger(log))
	r.Use(gin.Recovery())
	r.Use(middleware.AllowIPs(deps.Cfg.Server.BackofficeAllowedIPs))

	var syncer handler.Syncer
	if deps.SyncSvc != nil {
		syncer = deps.SyncSvc
	}
	var conns handler.Connections
	if deps.Hub != nil {
		conns = deps.Hub
	}

	dashH := handler.NewDashboardHandler(deps.EventSvc, syncer, conns)
	eventH := handler.NewEventAdminHandler(deps.EventSvc)
	userH := handler.NewUserAdminHandler(deps.AccountSvc)

	admin := r.Group("/admin")
	admin.Use(middleware.Authenticate(deps.AuthSvc), middleware.RequireAdmin())
	{
		admin.GET("/dashboard", dashH.Dashboard)
		admin.POST("/sync", dashH.Sync)

		// Events
		e := admin.Group("/events")
		{
			e.GET("", eventH.List)
			e.POST("", eventH.Create)
			e.GET("/:id", eventH.Detail)
			e.POST("/:id/clone", eventH.Clone)
			e.POST("/:id/cancel", eventH.Cancel)
			e.POST("/:id/resolve", eventH.Resolve)
			e.POST("/:id/regenerate", eventH.Regenerate)
			e.POST("/:id/outcomes", eventH.AddOutcome)
		}

		// Outcomes
		o := admin.Group("/outcomes")
		{
			o.DELETE("/:id", eventH.DeleteOutcome)
			o.POST("/:id/odds", eventH.SetOdds)
			o.POST("/:id/correct", eventH.Correct)
		}

		// Players
		admin.POST("/players/:id/recalculate", eventH.RecalculatePlayer)

		// Users
		u := admin.Group("/users")
		{
			u.GET("", userH.List)
			u.GET("/:id", userH.Detail)
			u.POST("/:id/suspend", userH.Suspend)
			u.POST("/:id/activate", userH.Activate)
			u.POST("/:id/balance", userH.AdjustBalance)
			u.POST("/:id/role", userH.SetRole)
		}
	}

	return r
}
