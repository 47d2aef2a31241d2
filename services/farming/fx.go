package farming

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("farming.service",
	fx.Provide(NewService, NewHandler),
)

var Routes = fx.Module("farming.routes",
	fx.Invoke(registerRoutes),
)

// SchedulerModule runs the expiry sweep; only the worker mounts it.
var SchedulerModule = fx.Module("farming.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

func registerRoutes(r *gin.Engine, h *Handler) {
	v2 := r.Group("/v2")
	v2.POST("/contents", h.CreateContent)
	v2.POST("/contents/:contentID/farmings", h.Farm)
	v2.GET("/contents/:contentID/farmings/:accountID", h.GetContentFarming)
	v2.DELETE("/contents/:contentID/farmings/:accountID", h.Unfarm)
}
