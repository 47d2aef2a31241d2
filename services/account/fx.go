package account

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(NewService, NewHandler),
)

var Routes = fx.Module("account.routes",
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, h *Handler) {
	v2 := r.Group("/v2")
	v2.POST("/accounts", h.CreateAccount)
	v2.GET("/accounts/:accountID", h.GetAccount)
	v2.POST("/accounts/:accountID/verify-mobile", h.VerifyMobile)
	v2.DELETE("/accounts/:accountID", h.DeleteAccount)
}
