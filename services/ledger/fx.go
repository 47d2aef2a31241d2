package ledger

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(NewService, NewHandler),
	fx.Invoke(ensureChart),
)

var Routes = fx.Module("ledger.routes",
	fx.Invoke(registerRoutes),
)

func ensureChart(lc fx.Lifecycle, service *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return service.EnsureChart(ctx)
		},
	})
}

func registerRoutes(r *gin.Engine, h *Handler) {
	v2 := r.Group("/v2")
	v2.GET("/wallets/:accountID/balance", h.GetBalance)
	v2.GET("/caccounts/:no/balance", h.GetCAccountBalance)
}
